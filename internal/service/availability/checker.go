// Package availability はユニットの空き状況を判定します
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// ReservationLister はユニットの予約一覧を取得します
// 予約作成時はユニットのロックを保持したトランザクションがこれを満たします
type ReservationLister interface {
	ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error)
}

// Checker は予約の重複を判定します
type Checker struct {
	reservations ReservationLister
}

// NewChecker は新しいCheckerを作成します
func NewChecker(reservations ReservationLister) *Checker {
	return &Checker{reservations: reservations}
}

// IsAvailable はユニットが [checkIn, checkOut) の期間に予約可能かを返します
func (c *Checker) IsAvailable(ctx context.Context, unitID string, checkIn, checkOut time.Time) (bool, error) {
	conflicts, err := c.Conflicts(ctx, unitID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts は期間が重なるキャンセル以外の予約を返します
func (c *Checker) Conflicts(ctx context.Context, unitID string, checkIn, checkOut time.Time) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityChecker.Conflicts")
	defer seg.Close(nil)

	if !model.DateOf(checkIn).Before(model.DateOf(checkOut)) {
		return nil, fmt.Errorf("%w: check-out must be after check-in", model.ErrInvalidDateRange)
	}

	existing, err := c.reservations.ListByUnit(ctx, unitID)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list reservations for unit %s: %w", unitID, err)
	}

	return FindConflicts(existing, checkIn, checkOut), nil
}

// BlockedNights は [from, to) の範囲で予約により埋まっている泊の開始日を返します
func (c *Checker) BlockedNights(ctx context.Context, unitID string, from, to time.Time) ([]time.Time, error) {
	conflicts, err := c.Conflicts(ctx, unitID, from, to)
	if err != nil {
		return nil, err
	}

	blocked := make(map[time.Time]struct{})
	for _, r := range conflicts {
		for _, night := range model.Nights(r.CheckIn, r.CheckOut) {
			blocked[night] = struct{}{}
		}
	}

	nights := make([]time.Time, 0, len(blocked))
	for _, night := range model.Nights(from, to) {
		if _, ok := blocked[night]; ok {
			nights = append(nights, night)
		}
	}
	return nights, nil
}

// FindConflicts は予約一覧のうち [checkIn, checkOut) と重なるものを返します
// キャンセル済みの予約は期間を占有しません
func FindConflicts(existing []model.Reservation, checkIn, checkOut time.Time) []model.Reservation {
	var conflicts []model.Reservation
	for _, r := range existing {
		if r.Status == model.ReservationStatusCancelled {
			continue
		}
		if r.Overlaps(checkIn, checkOut) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}
