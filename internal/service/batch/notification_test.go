package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled bool
	createNotificationsError  error
	notifications             []model.NotificationRecord
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	m.createNotificationsCalled = true
	m.notifications = records
	return m.createNotificationsError
}

func (m *MockNotificationRepository) GetByCustomerID(ctx context.Context, customerID string) ([]model.NotificationRecord, error) {
	return nil, nil
}

// MockUnitRepository はテスト用のモックリポジトリです
type MockUnitRepository struct {
	getNameByIDCalls int
	getNameByIDError error
}

func (m *MockUnitRepository) Get(ctx context.Context, unitID string) (model.Unit, error) {
	return model.Unit{ID: unitID, Name: "Seaside"}, nil
}

func (m *MockUnitRepository) List(ctx context.Context) ([]model.Unit, error) {
	return nil, nil
}

func (m *MockUnitRepository) GetNameByID(ctx context.Context, unitID string) (string, error) {
	m.getNameByIDCalls++
	return "Seaside", m.getNameByIDError
}

// newTestNotificationBatchService はテスト用のNotificationBatchServiceを作成します
func newTestNotificationBatchService(mockNotificationRepo *MockNotificationRepository, mockUnitRepo *MockUnitRepository) *NotificationBatchService {
	return &NotificationBatchService{
		notificationRepo: mockNotificationRepo,
		unitRepo:         mockUnitRepo,
		cfg:              &config.Config{},
	}
}

func testEvent(eventType model.ReservationEventType, reservationID, unitID string, now time.Time) model.ReservationEvent {
	return model.ReservationEvent{
		Type:            eventType,
		ReservationID:   reservationID,
		ReservationCode: "RES-000001",
		CustomerID:      "cust1",
		UnitID:          unitID,
		CheckIn:         time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC),
		TotalPrice:      decimal.NewFromInt(3000),
		DepositAmount:   decimal.NewFromInt(600),
		PaidAmount:      decimal.NewFromInt(600),
		CreatedAt:       now,
	}
}

func TestNotificationBatchService_Run(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run")
	defer seg.Close(nil)

	now := time.Now().UTC()
	tests := []struct {
		name          string
		notifications []model.Notification
		mockError     error
		wantErr       bool
		wantLookups   int
	}{
		{
			name:          "0件の通知を正常に処理",
			notifications: []model.Notification{},
		},
		{
			name: "1件の通知を正常に処理",
			notifications: []model.Notification{
				model.NewReservationNotification(testEvent(model.EventReservationCreated, "r1", "unit1", now)),
			},
			wantLookups: 1,
		},
		{
			name: "同じユニットの通知はバンガロー名を1度だけ取得",
			notifications: []model.Notification{
				model.NewReservationNotification(testEvent(model.EventReservationCancelled, "r1", "unit1", now)),
				model.NewReservationNotification(testEvent(model.EventDepositForfeited, "r1", "unit1", now)),
				model.NewReservationNotification(testEvent(model.EventReservationConfirmed, "r2", "unit2", now)),
			},
			wantLookups: 2,
		},
		{
			name: "バンガロー名の取得に失敗",
			notifications: []model.Notification{
				model.NewReservationNotification(testEvent(model.EventReservationCreated, "r1", "unit1", now)),
			},
			mockError:   errors.New("unit not found"),
			wantErr:     true,
			wantLookups: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotificationRepo := &MockNotificationRepository{}
			mockUnitRepo := &MockUnitRepository{
				getNameByIDError: tt.mockError,
			}

			service := newTestNotificationBatchService(mockNotificationRepo, mockUnitRepo)
			service.SetArgs(tt.notifications)
			err := service.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}

			if mockUnitRepo.getNameByIDCalls != tt.wantLookups {
				t.Errorf("GetNameByID calls = %d, want %d", mockUnitRepo.getNameByIDCalls, tt.wantLookups)
			}

			if tt.wantErr {
				if mockNotificationRepo.createNotificationsCalled {
					t.Error("CreateNotifications should not be called on error")
				}
				return
			}

			if !mockNotificationRepo.createNotificationsCalled {
				t.Error("CreateNotifications was not called")
			}
			if len(mockNotificationRepo.notifications) != len(tt.notifications) {
				t.Errorf("Expected %d notifications, got %d", len(tt.notifications), len(mockNotificationRepo.notifications))
			}
		})
	}
}

func TestNotificationBatchService_Run_Records(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run_Records")
	defer seg.Close(nil)

	now := time.Now().UTC()
	mockNotificationRepo := &MockNotificationRepository{}
	service := newTestNotificationBatchService(mockNotificationRepo, &MockUnitRepository{})
	service.SetArgs([]model.Notification{
		model.NewReservationNotification(testEvent(model.EventDepositForfeited, "r1", "unit1", now)),
	})

	if err := service.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	record := mockNotificationRepo.notifications[0]
	if record.Type != model.NotificationTypePayment || record.CustomerID != "cust1" || record.ReservationID != "r1" {
		t.Errorf("record = %+v", record)
	}
	if record.Title != "Deposit retained" {
		t.Errorf("Title = %q, want %q", record.Title, "Deposit retained")
	}
}

func TestNotificationBatchService_Run_MissingUnit(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run_MissingUnit")
	defer seg.Close(nil)

	service := newTestNotificationBatchService(&MockNotificationRepository{}, &MockUnitRepository{})
	service.SetArgs([]model.Notification{
		model.NewReservationNotification(testEvent(model.EventReservationCreated, "r1", "", time.Now())),
	})

	if err := service.Run(ctx); err == nil {
		t.Error("Run() error = nil, want error for missing unit_id")
	}
}

func TestParseNotifications(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "通知が0件",
			payload:   `{"notifications":[]}`,
			wantCount: 0,
		},
		{
			name: "期限切れバッチの出力",
			payload: `{"notifications":[{"type":"reservation","created_at":"2026-07-02T09:00:00Z","data":{
				"type":"reservation.cancelled","reservation_id":"r1","reservation_code":"RES-000001","customer_id":"cust1",
				"unit_id":"unit1","check_in":"2026-07-10T00:00:00Z","check_out":"2026-07-12T00:00:00Z",
				"total_price":"2000","deposit_amount":"400","paid_amount":"0","created_at":"2026-07-02T09:00:00Z"}}]}`,
			wantCount: 1,
		},
		{
			name:    "JSONではない",
			payload: "DUMMY_TASK_TOKEN",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifications, err := ParseNotifications(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNotifications() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(notifications) != tt.wantCount {
				t.Errorf("ParseNotifications() = %d notifications, want %d", len(notifications), tt.wantCount)
			}
			if tt.wantCount > 0 {
				data := notifications[0].Data
				if data.Type != model.EventReservationCancelled || data.UnitID != "unit1" || !data.TotalPrice.Equal(decimal.NewFromInt(2000)) {
					t.Errorf("Data = %+v", data)
				}
			}
		})
	}
}
