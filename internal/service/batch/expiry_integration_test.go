package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/reservation"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

// MockTaskNotifier はStep Functionsクライアントのモックです
type MockTaskNotifier struct {
	inputs []*sfn.SendTaskSuccessInput
	err    error
}

func (m *MockTaskNotifier) SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	m.inputs = append(m.inputs, params)
	return &sfn.SendTaskSuccessOutput{}, m.err
}

// MockSweeper は掃除処理のモックです
type MockSweeper struct {
	err error
}

func (m *MockSweeper) SweepExpired(ctx context.Context) ([]model.Reservation, error) {
	return nil, m.err
}

type nopPublisher struct{}

func (nopPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	return nil
}

// newExpiryFixture は確認期限切れの予約を2件含むインメモリのストアを用意します
func newExpiryFixture(t *testing.T, ctx context.Context) (*reservation.Service, *time.Time) {
	t.Helper()

	store := repository.NewMemoryStore()
	store.PutUnit(model.Unit{ID: "unit1", Name: "Seaside", Capacity: 4, DailyPrice: decimal.NewFromInt(1000), Status: model.UnitStatusActive})
	store.PutCustomer(model.Customer{ID: "cust1", Name: "Ana", Status: model.CustomerStatusActive, TotalSpent: decimal.Zero})

	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc := reservation.NewService(
		store.Units(), store.Customers(), store.Reservations(),
		settings.Static{Settings: model.DefaultSettings()},
		nopPublisher{},
		reservation.Options{Now: func() time.Time { return now }},
	)

	for i, req := range []reservation.BookRequest{
		{CheckIn: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC)},
		{CheckIn: time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2026, 7, 22, 0, 0, 0, 0, time.UTC), DepositReceived: true},
	} {
		req.UnitID, req.CustomerID, req.GuestCount = "unit1", "cust1", 2
		if _, err := svc.Book(ctx, req); err != nil {
			t.Fatalf("Book(%d) error = %v", i, err)
		}
	}

	return svc, &now
}

// TestExpiryBatchService_Integration はインメモリのストアを使って期限切れ処理を確認します
func TestExpiryBatchService_Integration(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestExpiryBatchService_Integration")
	defer seg.Close(nil)

	t.Setenv("ENV", "")

	svc, now := newExpiryFixture(t, ctx)
	*now = now.Add(25 * time.Hour)

	notifier := &MockTaskNotifier{}
	service := &ExpiryBatchService{
		sweeper:  svc,
		notifier: notifier,
		cfg:      &config.Config{SFN: struct{ TaskToken string }{TaskToken: "token-123"}},
		now:      func() time.Time { return *now },
	}

	if err := service.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(notifier.inputs) != 1 {
		t.Fatalf("SendTaskSuccess calls = %d, want 1", len(notifier.inputs))
	}
	if got := aws.ToString(notifier.inputs[0].TaskToken); got != "token-123" {
		t.Errorf("TaskToken = %q, want token-123", got)
	}

	var output struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(notifier.inputs[0].Output)), &output); err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	// 未入金の予約は取り消し通知のみ、手付金受領済みの予約は没収通知も送る
	if len(output.Notifications) != 3 {
		t.Fatalf("notifications = %d, want 3", len(output.Notifications))
	}
	forfeited := 0
	for _, n := range output.Notifications {
		if n.Data.Type == model.EventDepositForfeited {
			forfeited++
			if n.Type != model.NotificationTypePayment {
				t.Errorf("forfeit notification type = %v, want %v", n.Type, model.NotificationTypePayment)
			}
		}
	}
	if forfeited != 1 {
		t.Errorf("forfeit notifications = %d, want 1", forfeited)
	}

	// 2回目の実行では何も取り消さない
	if err := service.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if err := json.Unmarshal([]byte(aws.ToString(notifier.inputs[1].Output)), &output); err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if len(output.Notifications) != 0 {
		t.Errorf("second run notifications = %d, want 0", len(output.Notifications))
	}
}

func TestExpiryBatchService_Run(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestExpiryBatchService_Run")
	defer seg.Close(nil)

	tests := []struct {
		name       string
		local      bool
		sweeper    *MockSweeper
		notifier   *MockTaskNotifier
		taskToken  string
		wantErr    bool
		wantCalled bool
	}{
		{
			name:       "タスクの成功を通知",
			sweeper:    &MockSweeper{},
			notifier:   &MockTaskNotifier{},
			taskToken:  "token",
			wantCalled: true,
		},
		{
			name:      "LOCAL環境では通知しない",
			local:     true,
			sweeper:   &MockSweeper{},
			notifier:  &MockTaskNotifier{},
			taskToken: "token",
		},
		{
			name:     "タスクトークンがない",
			sweeper:  &MockSweeper{},
			notifier: &MockTaskNotifier{},
			wantErr:  true,
		},
		{
			name:      "掃除処理が失敗",
			sweeper:   &MockSweeper{err: errors.New("database down")},
			notifier:  &MockTaskNotifier{},
			taskToken: "token",
			wantErr:   true,
		},
		{
			name:       "タスクの成功通知が失敗",
			sweeper:    &MockSweeper{},
			notifier:   &MockTaskNotifier{err: errors.New("throttled")},
			taskToken:  "token",
			wantErr:    true,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.local {
				t.Setenv("ENV", "LOCAL")
			} else {
				t.Setenv("ENV", "")
			}

			service := &ExpiryBatchService{
				sweeper:  tt.sweeper,
				notifier: tt.notifier,
				cfg:      &config.Config{SFN: struct{ TaskToken string }{TaskToken: tt.taskToken}},
				now:      time.Now,
			}

			err := service.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if called := len(tt.notifier.inputs) > 0; called != tt.wantCalled {
				t.Errorf("SendTaskSuccess called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}
