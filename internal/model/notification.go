package model

import (
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeReservation は予約関連の通知を表します
	NotificationTypeReservation NotificationType = "reservation"
	// NotificationTypePayment は支払い関連の通知を表します
	NotificationTypePayment NotificationType = "payment"
)

// Notification はイベントIFを受け取るための定義です
// アプリケーションサービス層で利用されます
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      ReservationEvent `json:"data"`
}

// NotificationRecord は通知のドメインモデルです
// データベースに永続化される通知レコードと今回は一致しています
type NotificationRecord struct {
	ID            int              `json:"id" db:"id"`
	CustomerID    string           `json:"customer_id" db:"customer_id"`
	ReservationID string           `json:"reservation_id" db:"reservation_id"`
	Title         string           `json:"title" db:"title"`
	Message       string           `json:"message" db:"message"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	Type          NotificationType `json:"type" db:"type"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// ToNotificationRecord は通知を通知レコードに変換します
func (n Notification) ToNotificationRecord(unitNameMap map[string]string) (*NotificationRecord, error) {
	event := n.Data
	if event.ReservationID == "" || event.CustomerID == "" {
		return nil, fmt.Errorf("invalid notification data: reservation_id and customer_id are required")
	}

	unitName, ok := unitNameMap[event.UnitID]
	if !ok {
		return nil, fmt.Errorf("unit_id %q not found in unitNameMap", event.UnitID)
	}

	stay := fmt.Sprintf("%s - %s", event.CheckIn.Format("2006-01-02"), event.CheckOut.Format("2006-01-02"))

	var title, message string
	switch event.Type {
	case EventReservationCreated:
		title = "Reservation received"
		message = fmt.Sprintf(`Your reservation %s has been received.
Bungalow: %s
Stay: %s
Deposit due: %s`, event.ReservationCode, unitName, stay, event.DepositAmount.StringFixed(0))
		if event.ConfirmationExpiresAt != nil {
			message += fmt.Sprintf("\nPlease confirm your transfer before %s", event.ConfirmationExpiresAt.Format("2006-01-02 15:04"))
		}
		if event.ConfirmationURL != "" {
			message += "\n" + event.ConfirmationURL
		}
	case EventReservationConfirmed:
		title = "Reservation confirmed"
		message = fmt.Sprintf(`Your reservation %s is confirmed.
Bungalow: %s
Stay: %s
Remaining amount: %s`, event.ReservationCode, unitName, stay, event.TotalPrice.Sub(event.PaidAmount).StringFixed(0))
	case EventReservationCancelled:
		title = "Reservation cancelled"
		message = fmt.Sprintf(`Your reservation %s has been cancelled.
Bungalow: %s
Stay: %s`, event.ReservationCode, unitName, stay)
	case EventDepositForfeited:
		title = "Deposit retained"
		message = fmt.Sprintf(`The deposit of %s for reservation %s has been retained.`, event.PaidAmount.StringFixed(0), event.ReservationCode)
	default:
		return nil, fmt.Errorf("unsupported event type: %s", event.Type)
	}

	return &NotificationRecord{
		CustomerID:    event.CustomerID,
		ReservationID: event.ReservationID,
		Title:         title,
		Message:       message,
		IsRead:        false,
		Type:          n.Type,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.CreatedAt,
	}, nil
}

// NewReservationNotification は予約イベントから通知を作成します
func NewReservationNotification(event ReservationEvent) Notification {
	notificationType := NotificationTypeReservation
	if event.Type == EventDepositForfeited {
		notificationType = NotificationTypePayment
	}
	return Notification{
		Type:      notificationType,
		CreatedAt: event.CreatedAt,
		Data:      event,
	}
}
