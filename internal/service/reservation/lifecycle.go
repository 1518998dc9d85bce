package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// Cancel はオペレーターによるキャンセルを行います
// 確定済みの予約はキャンセル規定の期限内に限ります
func (s *Service) Cancel(ctx context.Context, reservationID, reason string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.Cancel")
	defer seg.Close(nil)

	r, err := s.Get(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to load settings: %w", err)
	}

	now := s.now()
	previous := r.Status
	if err := r.Cancel(snapshot.CancellationRule, reason, now); err != nil {
		return model.Reservation{}, err
	}
	if err := s.update(ctx, &r, previous); err != nil {
		seg.Close(err)
		return model.Reservation{}, err
	}

	s.afterWrite(ctx, r.CustomerID, model.CancellationEvents(r, now)...)
	return r, nil
}

// CheckIn はチェックイン日以降に宿泊開始を記録します
func (s *Service) CheckIn(ctx context.Context, reservationID string) (model.Reservation, error) {
	return s.apply(ctx, "ReservationService.CheckIn", reservationID, (*model.Reservation).MarkCheckedIn)
}

// CheckOut はチェックアウト日以降に宿泊終了を記録します
func (s *Service) CheckOut(ctx context.Context, reservationID string) (model.Reservation, error) {
	return s.apply(ctx, "ReservationService.CheckOut", reservationID, (*model.Reservation).MarkCheckedOut)
}

// RecordPayment は追加の入金を記録します。残額を超える入金は受け付けません
func (s *Service) RecordPayment(ctx context.Context, reservationID string, amount decimal.Decimal) (model.Reservation, error) {
	return s.apply(ctx, "ReservationService.RecordPayment", reservationID, func(r *model.Reservation, now time.Time) error {
		return r.RecordPayment(amount, now)
	})
}

// apply は予約を読み出して変更を加え、読み出した時点の状態を条件に保存します
func (s *Service) apply(ctx context.Context, name, reservationID string, mutate func(r *model.Reservation, now time.Time) error) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, name)
	defer seg.Close(nil)

	r, err := s.Get(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}

	previous := r.Status
	if err := mutate(&r, s.now()); err != nil {
		return model.Reservation{}, err
	}
	if err := s.update(ctx, &r, previous); err != nil {
		seg.Close(err)
		return model.Reservation{}, err
	}

	s.afterWrite(ctx, r.CustomerID)
	return r, nil
}
