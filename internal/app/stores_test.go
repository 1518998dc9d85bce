package app

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/reservation"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

type recordingPublisher struct {
	events []model.ReservationEvent
}

func (p *recordingPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestNewStores_MemoryStore(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNewStores_MemoryStore")
	defer seg.Close(nil)

	cfg := &config.Config{UseMemoryStore: true}
	cfg.Confirmation.PublicBaseURL = "https://book.example.com"
	cfg.Confirmation.TTL = 2 * time.Hour

	stores, err := NewStores(cfg)
	if err != nil {
		t.Fatalf("NewStores() error = %v", err)
	}
	defer stores.Close()

	if stores.Memory == nil {
		t.Fatal("Memory = nil, want in-memory store")
	}
	stores.Memory.PutUnit(model.Unit{ID: "unit1", Name: "Seaside", Capacity: 2, DailyPrice: decimal.NewFromInt(1000), Status: model.UnitStatusActive})
	stores.Memory.PutCustomer(model.Customer{ID: "cust1", Name: "Ana", Status: model.CustomerStatusActive, TotalSpent: decimal.Zero})

	publisher := &recordingPublisher{}
	svc := NewReservationService(cfg, stores, settings.Static{Settings: model.DefaultSettings()}, publisher)

	checkIn := time.Now().UTC().AddDate(0, 0, 30)
	result, err := svc.Book(ctx, reservation.BookRequest{
		UnitID:     "unit1",
		CustomerID: "cust1",
		CheckIn:    checkIn,
		CheckOut:   checkIn.AddDate(0, 0, 2),
		GuestCount: 2,
	})
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	wantURL := "https://book.example.com/confirm/" + *result.Reservation.ConfirmationCode
	if result.ConfirmationURL != wantURL {
		t.Errorf("ConfirmationURL = %v, want %v", result.ConfirmationURL, wantURL)
	}
	if remaining := time.Until(*result.Reservation.ConfirmationExpiresAt); remaining > 2*time.Hour || remaining < time.Hour {
		t.Errorf("confirmation expires in %v, want about 2h", remaining)
	}
	if len(publisher.events) != 1 || publisher.events[0].ConfirmationURL != wantURL {
		t.Errorf("published events = %+v", publisher.events)
	}
}
