// Package reservation は予約の作成からチェックアウトまでのライフサイクルを扱います
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/availability"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

// DefaultConfirmationTTL は確認コードの既定の有効期間です
const DefaultConfirmationTTL = 24 * time.Hour

// EventPublisher は予約イベントを通知基盤へ発行します
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error
}

// Options はServiceの動作設定です。ゼロ値の項目は既定値を使います
type Options struct {
	ConfirmationTTL time.Duration
	// ConfirmationURL は確認コードから顧客向けリンクを作ります
	ConfirmationURL func(code string) string
	Now             func() time.Time
	NewID           func() string
}

// Service は予約のライフサイクルを管理します
type Service struct {
	units        repository.UnitRepository
	customers    repository.CustomerRepository
	reservations repository.ReservationRepository
	settings     settings.Provider
	events       EventPublisher

	confirmationTTL time.Duration
	confirmationURL func(code string) string
	now             func() time.Time
	newID           func() string
}

// NewService は新しいServiceを作成します
func NewService(
	units repository.UnitRepository,
	customers repository.CustomerRepository,
	reservations repository.ReservationRepository,
	settingsProvider settings.Provider,
	events EventPublisher,
	opts Options,
) *Service {
	s := &Service{
		units:           units,
		customers:       customers,
		reservations:    reservations,
		settings:        settingsProvider,
		events:          events,
		confirmationTTL: opts.ConfirmationTTL,
		confirmationURL: opts.ConfirmationURL,
		now:             opts.Now,
		newID:           opts.NewID,
	}
	if s.confirmationTTL == 0 {
		s.confirmationTTL = DefaultConfirmationTTL
	}
	if s.confirmationURL == nil {
		s.confirmationURL = func(code string) string { return "/confirm/" + code }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Get は予約を取得します
// 確認期限を過ぎた確認待ちの予約は、その場で期限切れとして取り消してから返します
func (s *Service) Get(ctx context.Context, reservationID string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.Get")
	defer seg.Close(nil)

	r, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	return s.expireIfNeeded(ctx, r)
}

// List は条件に一致する予約を取得します
func (s *Service) List(ctx context.Context, filter repository.ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.List")
	defer seg.Close(nil)

	reservations, err := s.reservations.List(ctx, filter)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	result := make([]model.Reservation, 0, len(reservations))
	for _, r := range reservations {
		r, err := s.expireIfNeeded(ctx, r)
		if err != nil {
			seg.Close(err)
			return nil, err
		}
		// 期限切れで状態が変わった場合は絞り込み条件から外れることがある
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

// Availability は期間の空き状況と重なっている予約を返します
func (s *Service) Availability(ctx context.Context, unitID string, checkIn, checkOut time.Time) ([]model.Reservation, error) {
	if _, err := s.units.Get(ctx, unitID); err != nil {
		return nil, err
	}
	return availability.NewChecker(s.reservations).Conflicts(ctx, unitID, checkIn, checkOut)
}

// BlockedNights はカレンダー表示用に埋まっている泊を返します
func (s *Service) BlockedNights(ctx context.Context, unitID string, from, to time.Time) ([]time.Time, error) {
	if _, err := s.units.Get(ctx, unitID); err != nil {
		return nil, err
	}
	return availability.NewChecker(s.reservations).BlockedNights(ctx, unitID, from, to)
}

// RefreshCustomerAggregates は顧客の予約一覧全体から集計値を計算し直して保存します
func (s *Service) RefreshCustomerAggregates(ctx context.Context, customerID string) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.RefreshCustomerAggregates")
	defer seg.Close(nil)

	reservations, err := s.reservations.ListByCustomer(ctx, customerID)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to list reservations for customer %s: %w", customerID, err)
	}

	agg := model.ComputeCustomerAggregate(customerID, reservations)
	if err := s.customers.UpdateAggregates(ctx, customerID, agg, s.now()); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update customer aggregates: %w", err)
	}
	return nil
}

// afterWrite は予約の変更後にイベント発行と顧客集計の再計算を行います
// 予約自体は確定済みのため、ここでの失敗はログに残して処理を続けます
func (s *Service) afterWrite(ctx context.Context, customerID string, events ...model.ReservationEvent) {
	for _, event := range events {
		if err := s.events.PublishReservationEvent(ctx, event); err != nil {
			log.Printf("Failed to publish %s event for reservation %s: %v", event.Type, event.ReservationID, err)
		}
	}
	if err := s.RefreshCustomerAggregates(ctx, customerID); err != nil {
		log.Printf("Failed to refresh aggregates for customer %s: %v", customerID, err)
	}
}

// update は予約を期待する状態からの条件付きで保存します
func (s *Service) update(ctx context.Context, r *model.Reservation, expected model.ReservationStatus) error {
	if err := s.reservations.Update(ctx, r, expected); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return fmt.Errorf("%w: reservation %s was changed by another request", model.ErrInvalidTransition, r.ID)
		}
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	return nil
}
