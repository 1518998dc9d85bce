package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/availability"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/pricing"
)

// BookRequest はオペレーターによる予約作成の入力です
type BookRequest struct {
	UnitID          string           `json:"unit_id"`
	CustomerID      string           `json:"customer_id"`
	CheckIn         time.Time        `json:"check_in"`
	CheckOut        time.Time        `json:"check_out"`
	GuestCount      int              `json:"guest_count"`
	Notes           string           `json:"notes"`
	CustomTotal     *decimal.Decimal `json:"custom_total,omitempty"`
	DepositReceived bool             `json:"deposit_received"`
}

// BookResult は作成された予約と料金内訳です
// Warnings は予約を妨げない注意事項(定員超過など)です
type BookResult struct {
	Reservation     model.Reservation      `json:"reservation"`
	Breakdown       pricing.PriceBreakdown `json:"breakdown"`
	ConfirmationURL string                 `json:"confirmation_url"`
	Warnings        []string               `json:"warnings"`
}

// QuoteRequest は予約せずに料金を見積もる入力です
type QuoteRequest struct {
	UnitID          string           `json:"unit_id"`
	CheckIn         time.Time        `json:"check_in"`
	CheckOut        time.Time        `json:"check_out"`
	CustomTotal     *decimal.Decimal `json:"custom_total,omitempty"`
	DepositReceived bool             `json:"deposit_received"`
}

// Quote は見積り結果です
type Quote struct {
	Available bool                   `json:"available"`
	Breakdown pricing.PriceBreakdown `json:"breakdown"`
}

// Book は予約を作成し、確認コードを発行します
// 空き確認から作成まではユニット単位の排他の中で行います
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.Book")
	defer seg.Close(nil)

	checkIn, checkOut := model.DateOf(req.CheckIn), model.DateOf(req.CheckOut)
	if !checkIn.Before(checkOut) {
		return nil, fmt.Errorf("%w: check-out must be after check-in", model.ErrInvalidDateRange)
	}
	if req.GuestCount < 1 {
		return nil, fmt.Errorf("%w: at least one guest is required", model.ErrInvalidGuestCount)
	}

	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Status == model.CustomerStatusBanned {
		return nil, fmt.Errorf("%w: %s", model.ErrCustomerBanned, customer.ID)
	}

	unit, err := s.units.Get(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.Bookable() {
		return nil, fmt.Errorf("%w: unit %s is %s", model.ErrUnitUnavailable, unit.ID, unit.Status)
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var warnings []string
	if req.GuestCount > unit.Capacity {
		warnings = append(warnings, fmt.Sprintf("%v: %d guests for a capacity of %d", model.ErrCapacityExceeded, req.GuestCount, unit.Capacity))
	}

	now := s.now()
	engine := pricing.NewEngine(snapshot)
	var (
		created   model.Reservation
		breakdown pricing.PriceBreakdown
	)
	err = s.reservations.WithUnitLock(ctx, unit.ID, func(ctx context.Context, tx repository.ReservationTx) error {
		available, err := availability.NewChecker(tx).IsAvailable(ctx, unit.ID, checkIn, checkOut)
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: unit %s is already booked for %s - %s", model.ErrUnitUnavailable, unit.ID, checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly))
		}

		breakdown, err = engine.Price(unit, checkIn, checkOut, now, pricing.Overrides{
			CustomTotal:     req.CustomTotal,
			DepositReceived: req.DepositReceived,
		})
		if err != nil {
			return err
		}

		code, err := tx.NextCode(ctx)
		if err != nil {
			return err
		}

		created = model.Reservation{
			ID:            s.newID(),
			Code:          code,
			UnitID:        unit.ID,
			CustomerID:    customer.ID,
			CheckIn:       checkIn,
			CheckOut:      checkOut,
			Nights:        breakdown.Nights,
			GuestCount:    req.GuestCount,
			NightlyPrice:  breakdown.NightlyPrice,
			TotalPrice:    breakdown.AdjustedTotal,
			DepositAmount: breakdown.DepositAmount,
			Status:        model.ReservationStatusPending,
			Notes:         req.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		created.SetPaidAmount(breakdown.PaidAmount)

		if err := created.IssueConfirmation(s.newID(), now.Add(s.confirmationTTL), now); err != nil {
			return err
		}

		return tx.Create(ctx, &created)
	})
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	confirmationURL := s.confirmationURL(*created.ConfirmationCode)
	event := model.NewReservationEvent(model.EventReservationCreated, created, now)
	event.ConfirmationURL = confirmationURL
	s.afterWrite(ctx, created.CustomerID, event)

	return &BookResult{
		Reservation:     created,
		Breakdown:       breakdown,
		ConfirmationURL: confirmationURL,
		Warnings:        warnings,
	}, nil
}

// Quote は予約を作成せずに料金と空き状況を返します
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.Quote")
	defer seg.Close(nil)

	unit, err := s.units.Get(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.settings.Snapshot(ctx)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	breakdown, err := pricing.NewEngine(snapshot).Price(unit, req.CheckIn, req.CheckOut, s.now(), pricing.Overrides{
		CustomTotal:     req.CustomTotal,
		DepositReceived: req.DepositReceived,
	})
	if err != nil {
		return nil, err
	}

	available := false
	if unit.Bookable() {
		available, err = availability.NewChecker(s.reservations).IsAvailable(ctx, unit.ID, req.CheckIn, req.CheckOut)
		if err != nil {
			seg.Close(err)
			return nil, err
		}
	}

	return &Quote{Available: available, Breakdown: breakdown}, nil
}
