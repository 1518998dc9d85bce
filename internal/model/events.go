package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationEventType は予約処理で発行されるイベントの種類です
type ReservationEventType string

const (
	EventReservationCreated   ReservationEventType = "reservation.created"
	EventReservationConfirmed ReservationEventType = "reservation.confirmed"
	EventReservationCancelled ReservationEventType = "reservation.cancelled"
	EventDepositForfeited     ReservationEventType = "reservation.deposit_forfeited"
)

// ReservationEvent は予約の状態変化時に発行されるイベントの構造体
// 通知サブシステム(メール/WhatsApp)が購読します
type ReservationEvent struct {
	Type                  ReservationEventType `json:"type"`
	ReservationID         string               `json:"reservation_id"`
	ReservationCode       string               `json:"reservation_code"`
	CustomerID            string               `json:"customer_id"`
	UnitID                string               `json:"unit_id"`
	CheckIn               time.Time            `json:"check_in"`
	CheckOut              time.Time            `json:"check_out"`
	TotalPrice            decimal.Decimal      `json:"total_price"`
	DepositAmount         decimal.Decimal      `json:"deposit_amount"`
	PaidAmount            decimal.Decimal      `json:"paid_amount"`
	ConfirmationURL       string               `json:"confirmation_url,omitempty"`
	ConfirmationExpiresAt *time.Time           `json:"confirmation_expires_at,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
}

// NewReservationEvent は予約の現在の状態からイベントを作成します
func NewReservationEvent(eventType ReservationEventType, r Reservation, now time.Time) ReservationEvent {
	return ReservationEvent{
		Type:                  eventType,
		ReservationID:         r.ID,
		ReservationCode:       r.Code,
		CustomerID:            r.CustomerID,
		UnitID:                r.UnitID,
		CheckIn:               r.CheckIn,
		CheckOut:              r.CheckOut,
		TotalPrice:            r.TotalPrice,
		DepositAmount:         r.DepositAmount,
		PaidAmount:            r.PaidAmount,
		ConfirmationExpiresAt: r.ConfirmationExpiresAt,
		CreatedAt:             now,
	}
}

// CancellationEvents はキャンセルされた予約について発行すべきイベントを返します
// 手付金が没収された場合は DepositForfeited も併せて発行します
func CancellationEvents(r Reservation, now time.Time) []ReservationEvent {
	events := []ReservationEvent{NewReservationEvent(EventReservationCancelled, r, now)}
	if r.PaymentStatus == PaymentStatusDepositForfeited {
		events = append(events, NewReservationEvent(EventDepositForfeited, r, now))
	}
	return events
}
