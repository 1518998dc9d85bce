package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
)

// ConfirmationTicket は発行された確認コードです
type ConfirmationTicket struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url"`
}

// ConfirmationView は顧客向け確認ページの表示内容です
type ConfirmationView struct {
	Reservation  model.Reservation `json:"reservation"`
	UnitName     string            `json:"unit_name"`
	Expired      bool              `json:"expired"`
	Remaining    time.Duration     `json:"-"`
	RemainingSec int64             `json:"remaining_seconds"`
	CheckInTime  string            `json:"check_in_time"`
	CheckOutTime string            `json:"check_out_time"`
}

// IssueConfirmation は確認待ちの予約に新しい確認コードを発行します
// ttlが0の場合は既定の有効期間を使います。負のttlは即時に期限切れのコードになります
func (s *Service) IssueConfirmation(ctx context.Context, reservationID string, ttl time.Duration) (*ConfirmationTicket, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.IssueConfirmation")
	defer seg.Close(nil)

	if ttl == 0 {
		ttl = s.confirmationTTL
	}

	r, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	// 期限切れの予約には再発行せず、その場で取り消す
	if r.IsExpiredPending(now) {
		if _, _, err := s.expire(ctx, r); err != nil {
			seg.Close(err)
			return nil, err
		}
		return nil, model.ErrConfirmationExpired
	}

	code := s.newID()
	expiresAt := now.Add(ttl)
	if err := r.IssueConfirmation(code, expiresAt, now); err != nil {
		return nil, err
	}
	if err := s.update(ctx, &r, model.ReservationStatusPending); err != nil {
		seg.Close(err)
		return nil, err
	}

	return &ConfirmationTicket{Code: code, ExpiresAt: expiresAt, URL: s.confirmationURL(code)}, nil
}

// Confirm は確認コードと振込申告で予約を確定します
// 期限切れの場合は予約を取り消して ErrConfirmationExpired を返します
// 確定済みの予約に対しては現在の状態をそのまま返します
func (s *Service) Confirm(ctx context.Context, code string, decl model.DepositDeclaration) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.Confirm")
	defer seg.Close(nil)

	r, err := s.reservations.GetByConfirmationCode(ctx, code)
	if err != nil {
		return model.Reservation{}, err
	}

	now := s.now()
	switch {
	case r.Status == model.ReservationStatusConfirmed:
		return r, nil
	case r.IsExpiredPending(now):
		if _, _, err := s.expire(ctx, r); err != nil {
			seg.Close(err)
			return model.Reservation{}, err
		}
		return model.Reservation{}, model.ErrConfirmationExpired
	case r.Status == model.ReservationStatusCancelled && r.ConfirmationExpired(now):
		return model.Reservation{}, model.ErrConfirmationExpired
	}

	if err := r.Confirm(decl, now); err != nil {
		return model.Reservation{}, err
	}

	if err := s.reservations.Update(ctx, &r, model.ReservationStatusPending); err != nil {
		if !errors.Is(err, repository.ErrStaleUpdate) {
			seg.Close(err)
			return model.Reservation{}, fmt.Errorf("failed to update reservation: %w", err)
		}
		// 同時に確定または期限切れ処理が行われた
		current, getErr := s.reservations.Get(ctx, r.ID)
		if getErr != nil {
			return model.Reservation{}, getErr
		}
		if current.Status == model.ReservationStatusConfirmed {
			return current, nil
		}
		if current.ConfirmationExpired(now) {
			return model.Reservation{}, model.ErrConfirmationExpired
		}
		return model.Reservation{}, fmt.Errorf("%w: reservation %s is %s", model.ErrInvalidTransition, current.ID, current.Status)
	}

	s.afterWrite(ctx, r.CustomerID, model.NewReservationEvent(model.EventReservationConfirmed, r, now))
	return r, nil
}

// ConfirmationView は確認コードから顧客向けの表示内容を作ります
func (s *Service) ConfirmationView(ctx context.Context, code string) (*ConfirmationView, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.ConfirmationView")
	defer seg.Close(nil)

	r, err := s.reservations.GetByConfirmationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if r, err = s.expireIfNeeded(ctx, r); err != nil {
		seg.Close(err)
		return nil, err
	}

	unitName, err := s.units.GetNameByID(ctx, r.UnitID)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	now := s.now()
	view := &ConfirmationView{
		Reservation:  r,
		UnitName:     unitName,
		Expired:      r.ConfirmationExpired(now),
		CheckInTime:  snapshot.DefaultCheckInTime,
		CheckOutTime: snapshot.DefaultCheckOutTime,
	}
	if r.ConfirmationExpiresAt != nil && r.Status == model.ReservationStatusPending {
		view.Remaining = model.Countdown(now, *r.ConfirmationExpiresAt)
		view.RemainingSec = int64(view.Remaining / time.Second)
	}
	return view, nil
}

// SweepExpired は確認期限を過ぎた確認待ちの予約をまとめて取り消します
// 何度実行しても同じ予約を二重に処理しません
func (s *Service) SweepExpired(ctx context.Context) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.SweepExpired")
	defer seg.Close(nil)

	now := s.now()
	candidates, err := s.reservations.ListExpiredPending(ctx, now)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	log.Printf("Found %d expired pending reservations", len(candidates))

	var expired []model.Reservation
	for _, r := range candidates {
		cancelled, updated, err := s.expire(ctx, r)
		if err != nil {
			log.Printf("Failed to expire reservation %s: %v", r.ID, err)
			continue
		}
		if updated {
			expired = append(expired, cancelled)
		}
	}

	if err := seg.AddMetadata("expired_count", len(expired)); err != nil {
		log.Printf("Failed to add expired_count metadata: %v", err)
	}
	return expired, nil
}

// expireIfNeeded は読み出した予約が期限切れの確認待ちであれば取り消し、最新の状態を返します
func (s *Service) expireIfNeeded(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	if !r.IsExpiredPending(s.now()) {
		return r, nil
	}
	cancelled, updated, err := s.expire(ctx, r)
	if err != nil {
		return model.Reservation{}, err
	}
	if updated {
		return cancelled, nil
	}
	return s.reservations.Get(ctx, r.ID)
}

// expire は期限切れの予約を取り消します
// 別の処理が先に状態を変えていた場合は何もせずfalseを返します
func (s *Service) expire(ctx context.Context, r model.Reservation) (model.Reservation, bool, error) {
	now := s.now()
	if err := r.Expire(now); err != nil {
		return r, false, err
	}

	if err := s.reservations.Update(ctx, &r, model.ReservationStatusPending); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return r, false, nil
		}
		return r, false, fmt.Errorf("failed to expire reservation: %w", err)
	}

	s.afterWrite(ctx, r.CustomerID, model.CancellationEvents(r, now)...)
	return r, true, nil
}
