package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitStatus はバンガローの稼働状態です
type UnitStatus string

const (
	UnitStatusActive      UnitStatus = "active"
	UnitStatusInactive    UnitStatus = "inactive"
	UnitStatusMaintenance UnitStatus = "maintenance"
)

// Unit は貸し出し対象のバンガローです
type Unit struct {
	ID         string          `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Capacity   int             `json:"capacity" db:"capacity"`
	DailyPrice decimal.Decimal `json:"daily_price" db:"daily_price"`
	Status     UnitStatus      `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Bookable は新規予約を受け付けられる状態かどうかを返します
func (u Unit) Bookable() bool {
	return u.Status == UnitStatusActive
}
