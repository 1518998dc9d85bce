package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// MockReservationLister はテスト用のモックです
type MockReservationLister struct {
	reservations []model.Reservation
	err          error
	calledUnitID string
}

func (m *MockReservationLister) ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error) {
	m.calledUnitID = unitID
	return m.reservations, m.err
}

func date(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func reservation(id string, status model.ReservationStatus, checkIn, checkOut time.Time) model.Reservation {
	return model.Reservation{ID: id, UnitID: "unit1", Status: status, CheckIn: checkIn, CheckOut: checkOut}
}

func TestChecker_IsAvailable(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestChecker_IsAvailable")
	defer seg.Close(nil)

	existing := []model.Reservation{
		reservation("r1", model.ReservationStatusConfirmed, date(7, 10), date(7, 13)),
		reservation("r2", model.ReservationStatusCancelled, date(7, 20), date(7, 25)),
	}

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     bool
	}{
		{name: "完全に重なる", checkIn: date(7, 10), checkOut: date(7, 13), want: false},
		{name: "一部が重なる", checkIn: date(7, 12), checkOut: date(7, 15), want: false},
		{name: "既存予約を包含する", checkIn: date(7, 9), checkOut: date(7, 14), want: false},
		{name: "チェックアウト日にチェックインする", checkIn: date(7, 13), checkOut: date(7, 15), want: true},
		{name: "チェックイン日にチェックアウトする", checkIn: date(7, 8), checkOut: date(7, 10), want: true},
		{name: "キャンセル済みの予約とは重ならない", checkIn: date(7, 21), checkOut: date(7, 23), want: true},
		{name: "時刻が含まれていても暦日で判定", checkIn: time.Date(2026, 7, 13, 15, 0, 0, 0, time.UTC), checkOut: date(7, 14), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &MockReservationLister{reservations: existing}
			got, err := NewChecker(lister).IsAvailable(ctx, "unit1", tt.checkIn, tt.checkOut)
			if err != nil {
				t.Fatalf("IsAvailable() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
			if lister.calledUnitID != "unit1" {
				t.Errorf("ListByUnit() called with %q, want %q", lister.calledUnitID, "unit1")
			}
		})
	}
}

func TestChecker_IsAvailable_Errors(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestChecker_IsAvailable_Errors")
	defer seg.Close(nil)

	tests := []struct {
		name     string
		lister   *MockReservationLister
		checkIn  time.Time
		checkOut time.Time
		wantErr  error
	}{
		{
			name:     "同日のチェックイン・チェックアウト",
			lister:   &MockReservationLister{},
			checkIn:  date(7, 10),
			checkOut: date(7, 10),
			wantErr:  model.ErrInvalidDateRange,
		},
		{
			name:     "ストアのエラーをラップして返す",
			lister:   &MockReservationLister{err: errors.New("connection refused")},
			checkIn:  date(7, 10),
			checkOut: date(7, 11),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChecker(tt.lister).IsAvailable(ctx, "unit1", tt.checkIn, tt.checkOut)
			if err == nil {
				t.Fatal("IsAvailable() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("IsAvailable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChecker_BlockedNights(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestChecker_BlockedNights")
	defer seg.Close(nil)

	lister := &MockReservationLister{reservations: []model.Reservation{
		reservation("r1", model.ReservationStatusPending, date(7, 2), date(7, 4)),
		reservation("r2", model.ReservationStatusCheckedIn, date(7, 6), date(7, 8)),
		reservation("r3", model.ReservationStatusCancelled, date(7, 4), date(7, 6)),
	}}

	got, err := NewChecker(lister).BlockedNights(ctx, "unit1", date(7, 3), date(7, 7))
	if err != nil {
		t.Fatalf("BlockedNights() error = %v", err)
	}

	want := []time.Time{date(7, 3), date(7, 6)}
	if len(got) != len(want) {
		t.Fatalf("BlockedNights() = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("BlockedNights()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFindConflicts(t *testing.T) {
	existing := []model.Reservation{
		reservation("r1", model.ReservationStatusPending, date(7, 1), date(7, 3)),
		reservation("r2", model.ReservationStatusConfirmed, date(7, 5), date(7, 9)),
		reservation("r3", model.ReservationStatusCheckedOut, date(7, 2), date(7, 6)),
	}

	got := FindConflicts(existing, date(7, 3), date(7, 6))
	if len(got) != 2 || got[0].ID != "r2" || got[1].ID != "r3" {
		t.Errorf("FindConflicts() = %+v, want r2 and r3", got)
	}
}
