package model

import "errors"

// 予約・料金計算で発生する業務エラーです
// いずれも利用者に提示できる回復可能なエラーで、ストア障害とは区別されます
var (
	ErrInvalidDateRange         = errors.New("invalid date range")
	ErrUnitUnavailable          = errors.New("unit unavailable")
	ErrCapacityExceeded         = errors.New("capacity exceeded")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrConfirmationExpired      = errors.New("confirmation expired")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
	ErrInvalidTransition        = errors.New("invalid transition")

	ErrInvalidGuestCount   = errors.New("invalid guest count")
	ErrUnitNotFound        = errors.New("unit not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrCustomerBanned      = errors.New("customer banned")
	ErrPaymentExceedsTotal = errors.New("payment exceeds total price")
	ErrInvalidPayment      = errors.New("invalid payment amount")
)

// IsValidationError は業務エラー(利用者に返す4xx相当)かどうかを判定します
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDateRange,
		ErrUnitUnavailable,
		ErrCapacityExceeded,
		ErrReservationNotFound,
		ErrConfirmationExpired,
		ErrCancellationWindowClosed,
		ErrInvalidTransition,
		ErrInvalidGuestCount,
		ErrUnitNotFound,
		ErrCustomerNotFound,
		ErrCustomerBanned,
		ErrPaymentExceedsTotal,
		ErrInvalidPayment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
