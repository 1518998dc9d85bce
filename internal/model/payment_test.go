package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDerivePaymentStatus(t *testing.T) {
	total := decimal.NewFromInt(3000)

	tests := []struct {
		name   string
		status ReservationStatus
		paid   decimal.Decimal
		want   PaymentStatus
	}{
		{"未入金", ReservationStatusPending, decimal.Zero, PaymentStatusNotPaid},
		{"一部入金", ReservationStatusConfirmed, decimal.NewFromInt(600), PaymentStatusPartialPaid},
		{"全額入金", ReservationStatusConfirmed, total, PaymentStatusFullPaid},
		{"キャンセルで入金あり", ReservationStatusCancelled, decimal.NewFromInt(600), PaymentStatusDepositForfeited},
		{"キャンセルで入金なし", ReservationStatusCancelled, decimal.Zero, PaymentStatusNotPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePaymentStatus(tt.status, tt.paid, total); got != tt.want {
				t.Errorf("DerivePaymentStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservation_SetPaidAmountKeepsInvariant(t *testing.T) {
	r := newPendingReservation()
	for _, paid := range []int64{0, 600, 1500, 3000} {
		r.SetPaidAmount(decimal.NewFromInt(paid))
		if !r.RemainingAmount.Equal(r.TotalPrice.Sub(r.PaidAmount)) {
			t.Errorf("paid=%d: RemainingAmount = %v", paid, r.RemainingAmount)
		}
		if r.PaymentStatus != DerivePaymentStatus(r.Status, r.PaidAmount, r.TotalPrice) {
			t.Errorf("paid=%d: PaymentStatus = %v is inconsistent", paid, r.PaymentStatus)
		}
	}
}
