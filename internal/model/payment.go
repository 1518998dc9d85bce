package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentStatus は予約の支払い状態です
// 予約ステータスと入金額から導出され、単独で設定されることはありません
type PaymentStatus string

const (
	PaymentStatusNotPaid          PaymentStatus = "not_paid"
	PaymentStatusPartialPaid      PaymentStatus = "partial_paid"
	PaymentStatusFullPaid         PaymentStatus = "full_paid"
	PaymentStatusDepositForfeited PaymentStatus = "deposit_forfeited"
)

// DerivePaymentStatus は予約ステータス・入金額・合計金額から支払い状態を導出します
func DerivePaymentStatus(status ReservationStatus, paid, total decimal.Decimal) PaymentStatus {
	switch {
	case status == ReservationStatusCancelled && paid.IsPositive():
		return PaymentStatusDepositForfeited
	case !paid.IsPositive():
		return PaymentStatusNotPaid
	case paid.LessThan(total):
		return PaymentStatusPartialPaid
	default:
		return PaymentStatusFullPaid
	}
}

// ParsePaymentStatus は文字列をPaymentStatusに変換します
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch ps := PaymentStatus(s); ps {
	case PaymentStatusNotPaid, PaymentStatusPartialPaid, PaymentStatusFullPaid, PaymentStatusDepositForfeited:
		return ps, nil
	}
	return "", fmt.Errorf("invalid payment status: %s", s)
}
