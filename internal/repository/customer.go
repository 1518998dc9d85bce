package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// CustomerRepository は顧客情報の永続化を担当するインターフェースです
type CustomerRepository interface {
	Get(ctx context.Context, customerID string) (model.Customer, error)
	UpdateAggregates(ctx context.Context, customerID string, agg model.CustomerAggregate, now time.Time) error
}

// CustomerRepositoryImpl はCustomerRepositoryの実装です
type CustomerRepositoryImpl struct {
	db *DB
}

// NewCustomerRepository は新しいCustomerRepositoryを作成します
func NewCustomerRepository(db *DB) *CustomerRepositoryImpl {
	return &CustomerRepositoryImpl{db: db}
}

// Get は指定されたIDの顧客を取得します
func (r *CustomerRepositoryImpl) Get(ctx context.Context, customerID string) (model.Customer, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CustomerRepository.Get")
	defer seg.Close(nil)

	query := `
		SELECT id, name, email, phone, status, total_reservations, total_spent, created_at, updated_at
		FROM customers
		WHERE id = $1`

	var customer model.Customer
	err := r.db.GetContext(ctx, &customer, query, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Customer{}, fmt.Errorf("%w: %s", model.ErrCustomerNotFound, customerID)
	}
	if err != nil {
		seg.Close(err)
		return model.Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

// UpdateAggregates は再計算した集計値で顧客を上書きします
func (r *CustomerRepositoryImpl) UpdateAggregates(ctx context.Context, customerID string, agg model.CustomerAggregate, now time.Time) error {
	ctx, seg := xray.BeginSubsegment(ctx, "CustomerRepository.UpdateAggregates")
	defer seg.Close(nil)

	query := `
		UPDATE customers
		SET total_reservations = $1,
			total_spent = $2,
			updated_at = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, agg.TotalReservations, agg.TotalSpent, now, customerID)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update customer aggregates: %w", err)
	}

	if err := expectOneRow(result, fmt.Errorf("%w: %s", model.ErrCustomerNotFound, customerID)); err != nil {
		seg.Close(err)
		return err
	}

	return nil
}
