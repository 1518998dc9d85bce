package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// ReservationFilter は予約一覧の絞り込み条件です。空の項目は条件に含めません
type ReservationFilter struct {
	Status     model.ReservationStatus
	UnitID     string
	CustomerID string
}

// ReservationTx はユニットのロックを保持したまま行う予約作成の作業単位です
type ReservationTx interface {
	ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error)
	NextCode(ctx context.Context) (string, error)
	Create(ctx context.Context, reservation *model.Reservation) error
}

// ReservationRepository は予約の永続化を担当するインターフェースです
type ReservationRepository interface {
	Get(ctx context.Context, reservationID string) (model.Reservation, error)
	GetByConfirmationCode(ctx context.Context, code string) (model.Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error)
	ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error)
	// Update は予約の状態が expected のままである場合に限り更新します
	// 既に変更されていた場合は ErrStaleUpdate を返します
	Update(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error
	// WithUnitLock はユニット単位の排他を取得した上でfnを実行します
	// 空き確認と作成を同じ排他の中で行うことで二重予約を防ぎます
	WithUnitLock(ctx context.Context, unitID string, fn func(ctx context.Context, tx ReservationTx) error) error
}

// ReservationRepositoryImpl はPostgreSQLを使ったReservationRepositoryの実装です
type ReservationRepositoryImpl struct {
	db *DB
}

// NewReservationRepository は新しいReservationRepositoryを作成します
func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

const reservationColumns = `
	id, code, unit_id, customer_id, check_in, check_out, nights, guest_count,
	nightly_price, total_price, deposit_amount, paid_amount, remaining_amount,
	status, payment_status, confirmation_code, confirmation_expires_at,
	transfer_sender_name, transfer_bank_name, transfer_reference, transfer_declared_at,
	cancellation_reason, notes, created_at, updated_at`

// Get は指定されたIDの予約を取得します
func (r *ReservationRepositoryImpl) Get(ctx context.Context, reservationID string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Get")
	defer seg.Close(nil)

	return r.getOne(ctx, seg, `WHERE id = $1`, reservationID)
}

// GetByConfirmationCode は確認コードから予約を取得します
func (r *ReservationRepositoryImpl) GetByConfirmationCode(ctx context.Context, code string) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.GetByConfirmationCode")
	defer seg.Close(nil)

	return r.getOne(ctx, seg, `WHERE confirmation_code = $1`, code)
}

func (r *ReservationRepositoryImpl) getOne(ctx context.Context, seg *xray.Segment, where string, arg string) (model.Reservation, error) {
	var reservation model.Reservation
	err := r.db.GetContext(ctx, &reservation, `SELECT `+reservationColumns+` FROM reservations `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	if err != nil {
		seg.Close(err)
		return model.Reservation{}, fmt.Errorf("failed to get reservation: %w", err)
	}
	return reservation, nil
}

// List は条件に一致する予約をチェックイン日順に取得します
func (r *ReservationRepositoryImpl) List(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.List")
	defer seg.Close(nil)

	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UnitID != "" {
		args = append(args, filter.UnitID)
		conditions = append(conditions, fmt.Sprintf("unit_id = $%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY check_in ASC, code ASC`

	reservations := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	return reservations, nil
}

// ListByUnit はユニットの全予約を取得します
func (r *ReservationRepositoryImpl) ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error) {
	return r.List(ctx, ReservationFilter{UnitID: unitID})
}

// ListByCustomer は顧客の全予約を取得します
func (r *ReservationRepositoryImpl) ListByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error) {
	return r.List(ctx, ReservationFilter{CustomerID: customerID})
}

// ListExpiredPending は確認期限を過ぎた確認待ちの予約を取得します
func (r *ReservationRepositoryImpl) ListExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListExpiredPending")
	defer seg.Close(nil)

	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = $1
		AND confirmation_expires_at IS NOT NULL
		AND confirmation_expires_at < $2
		ORDER BY confirmation_expires_at ASC`

	reservations := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, model.ReservationStatusPending, now); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query expired pending reservations: %w", err)
	}

	return reservations, nil
}

// Update は予約の可変項目を更新します
func (r *ReservationRepositoryImpl) Update(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Update")
	defer seg.Close(nil)

	query := `
		UPDATE reservations
		SET status = $1,
			payment_status = $2,
			paid_amount = $3,
			remaining_amount = $4,
			confirmation_code = $5,
			confirmation_expires_at = $6,
			transfer_sender_name = $7,
			transfer_bank_name = $8,
			transfer_reference = $9,
			transfer_declared_at = $10,
			cancellation_reason = $11,
			notes = $12,
			updated_at = $13
		WHERE id = $14
		AND status = $15`

	result, err := r.db.ExecContext(ctx, query,
		reservation.Status,
		reservation.PaymentStatus,
		reservation.PaidAmount,
		reservation.RemainingAmount,
		reservation.ConfirmationCode,
		reservation.ConfirmationExpiresAt,
		reservation.TransferSenderName,
		reservation.TransferBankName,
		reservation.TransferReference,
		reservation.TransferDeclaredAt,
		reservation.CancellationReason,
		reservation.Notes,
		reservation.UpdatedAt,
		reservation.ID,
		expected,
	)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	if err := expectOneRow(result, fmt.Errorf("%w: reservation %s is no longer %s", ErrStaleUpdate, reservation.ID, expected)); err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// WithUnitLock はトランザクションスコープのアドバイザリロックでユニットを排他します
func (r *ReservationRepositoryImpl) WithUnitLock(ctx context.Context, unitID string, fn func(ctx context.Context, tx ReservationTx) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.WithUnitLock")
	defer seg.Close(nil)

	err := r.db.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		// ロックはコミットまたはロールバックで解放される
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, unitID); err != nil {
			return fmt.Errorf("failed to lock unit %s: %w", unitID, err)
		}
		return fn(ctx, &reservationTx{tx: tx})
	})
	if err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// reservationTx はトランザクション内のReservationTxの実装です
type reservationTx struct {
	tx *sqlx.Tx
}

func (t *reservationTx) ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error) {
	reservations := []model.Reservation{}
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE unit_id = $1 AND status <> $2 ORDER BY check_in ASC`
	if err := t.tx.SelectContext(ctx, &reservations, query, unitID, model.ReservationStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to list reservations for unit %s: %w", unitID, err)
	}
	return reservations, nil
}

func (t *reservationTx) NextCode(ctx context.Context) (string, error) {
	var seq int64
	if err := t.tx.GetContext(ctx, &seq, `SELECT nextval('reservation_code_seq')`); err != nil {
		return "", fmt.Errorf("failed to allocate reservation code: %w", err)
	}
	return model.FormatReservationCode(seq), nil
}

func (t *reservationTx) Create(ctx context.Context, reservation *model.Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `
		) VALUES (
			:id, :code, :unit_id, :customer_id, :check_in, :check_out, :nights, :guest_count,
			:nightly_price, :total_price, :deposit_amount, :paid_amount, :remaining_amount,
			:status, :payment_status, :confirmation_code, :confirmation_expires_at,
			:transfer_sender_name, :transfer_bank_name, :transfer_reference, :transfer_declared_at,
			:cancellation_reason, :notes, :created_at, :updated_at
		)`

	if _, err := t.tx.NamedExecContext(ctx, query, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}
