package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerStatus は顧客の状態です
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
	CustomerStatusBanned   CustomerStatus = "banned"
)

// Customer は予約を行う顧客です
// TotalReservations と TotalSpent は予約一覧から再計算される派生値です
type Customer struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Email             string          `json:"email" db:"email"`
	Phone             string          `json:"phone" db:"phone"`
	Status            CustomerStatus  `json:"status" db:"status"`
	TotalReservations int             `json:"total_reservations" db:"total_reservations"`
	TotalSpent        decimal.Decimal `json:"total_spent" db:"total_spent"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// CustomerAggregate は顧客ごとの集計値です
type CustomerAggregate struct {
	TotalReservations int
	TotalSpent        decimal.Decimal
}

// ComputeCustomerAggregate は予約一覧全体を走査して顧客の集計値を求めます
// 差分更新は行わず、毎回スナップショットから計算し直します
func ComputeCustomerAggregate(customerID string, reservations []Reservation) CustomerAggregate {
	agg := CustomerAggregate{TotalSpent: decimal.Zero}
	for _, r := range reservations {
		if r.CustomerID != customerID {
			continue
		}
		agg.TotalReservations++
		agg.TotalSpent = agg.TotalSpent.Add(r.TotalPrice)
	}
	return agg
}

// ComputeCustomerAggregates は全顧客分の集計値をまとめて求めます
func ComputeCustomerAggregates(reservations []Reservation) map[string]CustomerAggregate {
	aggs := make(map[string]CustomerAggregate)
	for _, r := range reservations {
		agg, ok := aggs[r.CustomerID]
		if !ok {
			agg.TotalSpent = decimal.Zero
		}
		agg.TotalReservations++
		agg.TotalSpent = agg.TotalSpent.Add(r.TotalPrice)
		aggs[r.CustomerID] = agg
	}
	return aggs
}
