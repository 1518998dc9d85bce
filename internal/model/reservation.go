package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus は予約のライフサイクル上の状態です
type ReservationStatus string

const (
	ReservationStatusPending    ReservationStatus = "pending"
	ReservationStatusConfirmed  ReservationStatus = "confirmed"
	ReservationStatusCheckedIn  ReservationStatus = "checked_in"
	ReservationStatusCheckedOut ReservationStatus = "checked_out"
	ReservationStatusCancelled  ReservationStatus = "cancelled"
)

// reservationTransitions は予約ステータスの遷移表です
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:    {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed:  {ReservationStatusCheckedIn, ReservationStatusCancelled},
	ReservationStatusCheckedIn:  {ReservationStatusCheckedOut},
	ReservationStatusCheckedOut: {},
	ReservationStatusCancelled:  {},
}

// CanTransitionTo は指定したステータスへ遷移可能かを返します
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal はこれ以上遷移できない状態かを返します
func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// ParseReservationStatus は文字列をReservationStatusに変換します
func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	if _, ok := reservationTransitions[status]; !ok {
		return "", fmt.Errorf("invalid reservation status: %s", s)
	}
	return status, nil
}

// Reservation は予約のドメインモデルです
// データベースの reservations テーブルと一致しています
type Reservation struct {
	ID                    string            `json:"id" db:"id"`
	Code                  string            `json:"code" db:"code"`
	UnitID                string            `json:"unit_id" db:"unit_id"`
	CustomerID            string            `json:"customer_id" db:"customer_id"`
	CheckIn               time.Time         `json:"check_in" db:"check_in"`
	CheckOut              time.Time         `json:"check_out" db:"check_out"`
	Nights                int               `json:"nights" db:"nights"`
	GuestCount            int               `json:"guest_count" db:"guest_count"`
	NightlyPrice          decimal.Decimal   `json:"nightly_price" db:"nightly_price"`
	TotalPrice            decimal.Decimal   `json:"total_price" db:"total_price"`
	DepositAmount         decimal.Decimal   `json:"deposit_amount" db:"deposit_amount"`
	PaidAmount            decimal.Decimal   `json:"paid_amount" db:"paid_amount"`
	RemainingAmount       decimal.Decimal   `json:"remaining_amount" db:"remaining_amount"`
	Status                ReservationStatus `json:"status" db:"status"`
	PaymentStatus         PaymentStatus     `json:"payment_status" db:"payment_status"`
	ConfirmationCode      *string           `json:"-" db:"confirmation_code"`
	ConfirmationExpiresAt *time.Time        `json:"confirmation_expires_at,omitempty" db:"confirmation_expires_at"`
	TransferSenderName    string            `json:"transfer_sender_name,omitempty" db:"transfer_sender_name"`
	TransferBankName      string            `json:"transfer_bank_name,omitempty" db:"transfer_bank_name"`
	TransferReference     string            `json:"transfer_reference,omitempty" db:"transfer_reference"`
	TransferDeclaredAt    *time.Time        `json:"transfer_declared_at,omitempty" db:"transfer_declared_at"`
	CancellationReason    string            `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Notes                 string            `json:"notes" db:"notes"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// DepositDeclaration は顧客が申告した手付金(カポラ)の振込情報です
// 振込の事実は記録のみで、検証は行いません
type DepositDeclaration struct {
	SenderName string `json:"sender_name"`
	BankName   string `json:"bank_name"`
	Reference  string `json:"reference"`
}

// FormatReservationCode は連番から表示用の予約コードを作ります
func FormatReservationCode(seq int64) string {
	return fmt.Sprintf("RES-%06d", seq)
}

// Overlaps は半開区間 [checkIn, checkOut) が予約の期間と重なるかを返します
func (r Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return DateOf(checkIn).Before(DateOf(r.CheckOut)) && DateOf(r.CheckIn).Before(DateOf(checkOut))
}

// ConfirmationExpired は確認期限を過ぎているかを返します
func (r Reservation) ConfirmationExpired(now time.Time) bool {
	return r.ConfirmationExpiresAt != nil && now.After(*r.ConfirmationExpiresAt)
}

// IsExpiredPending は期限切れのまま確認待ちになっている予約かを返します
func (r Reservation) IsExpiredPending(now time.Time) bool {
	return r.Status == ReservationStatusPending && r.ConfirmationExpired(now)
}

// SetPaidAmount は入金額を更新し、残額と支払い状態を再計算します
func (r *Reservation) SetPaidAmount(paid decimal.Decimal) {
	r.PaidAmount = paid
	r.refreshPayment()
}

// refreshPayment は残額と支払い状態を入金額から導出し直します
func (r *Reservation) refreshPayment() {
	r.RemainingAmount = FloorZero(r.TotalPrice.Sub(r.PaidAmount))
	r.PaymentStatus = DerivePaymentStatus(r.Status, r.PaidAmount, r.TotalPrice)
}

func (r *Reservation) transition(to ReservationStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now
	r.refreshPayment()
	return nil
}

// IssueConfirmation は確認コードと期限を設定します
func (r *Reservation) IssueConfirmation(code string, expiresAt, now time.Time) error {
	if r.Status != ReservationStatusPending {
		return fmt.Errorf("%w: confirmation can only be issued for pending reservations (status=%s)", ErrInvalidTransition, r.Status)
	}
	if r.ConfirmationExpired(now) {
		return ErrConfirmationExpired
	}
	r.ConfirmationCode = &code
	r.ConfirmationExpiresAt = &expiresAt
	r.UpdatedAt = now
	return nil
}

// Confirm は振込申告を記録し、手付金を入金済みとして Pending から Confirmed に遷移させます
func (r *Reservation) Confirm(decl DepositDeclaration, now time.Time) error {
	if r.IsExpiredPending(now) {
		return ErrConfirmationExpired
	}
	if err := r.transition(ReservationStatusConfirmed, now); err != nil {
		return err
	}
	declaredAt := now
	r.TransferSenderName = decl.SenderName
	r.TransferBankName = decl.BankName
	r.TransferReference = decl.Reference
	r.TransferDeclaredAt = &declaredAt
	if r.PaidAmount.LessThan(r.DepositAmount) {
		r.SetPaidAmount(r.DepositAmount)
	}
	return nil
}

// Expire は確認期限切れの予約を取り消します
// 手付金が記録済みであれば支払い状態は DepositForfeited になります
func (r *Reservation) Expire(now time.Time) error {
	if !r.IsExpiredPending(now) {
		return fmt.Errorf("%w: reservation %s is not an expired pending reservation", ErrInvalidTransition, r.ID)
	}
	r.CancellationReason = "confirmation expired"
	return r.transition(ReservationStatusCancelled, now)
}

// Cancel は手動キャンセルを行います
// Confirmed の予約はキャンセル規定の期限内でのみ取り消せます
func (r *Reservation) Cancel(rule CancellationRule, reason string, now time.Time) error {
	if r.Status == ReservationStatusConfirmed && rule.Enabled {
		deadline := DateOf(r.CheckIn).AddDate(0, 0, -rule.DaysBeforeCheckIn)
		if !DateOf(now).Before(deadline) {
			return fmt.Errorf("%w: cancellation was allowed until %s", ErrCancellationWindowClosed, deadline.Format("2006-01-02"))
		}
	}
	if err := r.transition(ReservationStatusCancelled, now); err != nil {
		return err
	}
	r.CancellationReason = reason
	return nil
}

// MarkCheckedIn はチェックイン日以降に Confirmed から CheckedIn に遷移させます
func (r *Reservation) MarkCheckedIn(now time.Time) error {
	if r.Status == ReservationStatusConfirmed && DateOf(now).Before(DateOf(r.CheckIn)) {
		return fmt.Errorf("%w: check-in is not possible before %s", ErrInvalidTransition, r.CheckIn.Format("2006-01-02"))
	}
	return r.transition(ReservationStatusCheckedIn, now)
}

// MarkCheckedOut はチェックアウト日以降に CheckedIn から CheckedOut に遷移させます
func (r *Reservation) MarkCheckedOut(now time.Time) error {
	if r.Status == ReservationStatusCheckedIn && DateOf(now).Before(DateOf(r.CheckOut)) {
		return fmt.Errorf("%w: check-out is not possible before %s", ErrInvalidTransition, r.CheckOut.Format("2006-01-02"))
	}
	return r.transition(ReservationStatusCheckedOut, now)
}

// RecordPayment は追加入金を記録します
func (r *Reservation) RecordPayment(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPayment, amount)
	}
	switch r.Status {
	case ReservationStatusCancelled, ReservationStatusCheckedOut:
		return fmt.Errorf("%w: payments cannot be recorded on %s reservations", ErrInvalidTransition, r.Status)
	}
	paid := r.PaidAmount.Add(amount)
	if paid.GreaterThan(r.TotalPrice) {
		return fmt.Errorf("%w: remaining amount is %s", ErrPaymentExceedsTotal, r.RemainingAmount)
	}
	r.SetPaidAmount(paid)
	r.UpdatedAt = now
	return nil
}

// Countdown は確認期限までの残り時間を返します(期限後は0)
func Countdown(now, expiresAt time.Time) time.Duration {
	if d := expiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
