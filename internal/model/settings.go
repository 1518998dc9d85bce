package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentType は料金調整の種類です
type AdjustmentType string

const (
	AdjustmentPercentage  AdjustmentType = "percentage"
	AdjustmentFixedAmount AdjustmentType = "fixed_amount"
)

// DefaultDepositPercent は手付金額が設定されていない場合の手付金の割合(%)です
const DefaultDepositPercent = 20

// Adjustment は料金への調整値です。符号が増減の向きを表します
type Adjustment struct {
	Type  AdjustmentType `json:"type" mapstructure:"type"`
	Value float64        `json:"value" mapstructure:"value"`
}

// Apply は合計金額に対する調整額を返します
func (a Adjustment) Apply(total decimal.Decimal) decimal.Decimal {
	value := decimal.NewFromFloat(a.Value)
	if a.Type == AdjustmentPercentage {
		return PercentOf(total, value)
	}
	return value
}

// DepositRule は手付金の規定です
type DepositRule struct {
	Enabled bool    `json:"enabled" mapstructure:"enabled"`
	Amount  float64 `json:"amount" mapstructure:"amount"`
}

// CancellationRule は確定済み予約のキャンセル期限です
type CancellationRule struct {
	Enabled           bool `json:"enabled" mapstructure:"enabled"`
	DaysBeforeCheckIn int  `json:"days_before_check_in" mapstructure:"days_before_check_in"`
}

// MinimumStayRule は最低宿泊数の規定です
type MinimumStayRule struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Days    int  `json:"days" mapstructure:"days"`
}

// WeekendPricing は週末の泊ごとに適用する調整です
type WeekendPricing struct {
	Enabled    bool           `json:"enabled" mapstructure:"enabled"`
	Days       []time.Weekday `json:"days" mapstructure:"days"`
	Adjustment `mapstructure:",squash"`
}

// IsWeekendNight はその日から始まる泊が週末料金の対象かを返します
func (w WeekendPricing) IsWeekendNight(night time.Time) bool {
	days := w.Days
	if len(days) == 0 {
		days = []time.Weekday{time.Saturday, time.Sunday}
	}
	for _, d := range days {
		if night.Weekday() == d {
			return true
		}
	}
	return false
}

// Season はシーズン料金の対象月と調整です
type Season struct {
	Name       string       `json:"name" mapstructure:"name"`
	Months     []time.Month `json:"months" mapstructure:"months"`
	Adjustment `mapstructure:",squash"`
}

// Covers はチェックイン月がシーズンに含まれるかを返します
func (s Season) Covers(month time.Month) bool {
	for _, m := range s.Months {
		if m == month {
			return true
		}
	}
	return false
}

// SeasonalPricing はシーズン料金の設定です
type SeasonalPricing struct {
	Enabled bool     `json:"enabled" mapstructure:"enabled"`
	Seasons []Season `json:"seasons" mapstructure:"seasons"`
}

// MonthlyAdjustment は月ごとの料金調整です
type MonthlyAdjustment struct {
	Month      time.Month `json:"month" mapstructure:"month"`
	Adjustment `mapstructure:",squash"`
}

// MonthlyPricing は月別料金の設定です
type MonthlyPricing struct {
	Enabled bool                `json:"enabled" mapstructure:"enabled"`
	Months  []MonthlyAdjustment `json:"months" mapstructure:"months"`
}

// SpecialDate は特定期間(祝日など)の料金調整です。Start, End とも含みます
type SpecialDate struct {
	Name       string    `json:"name" mapstructure:"name"`
	Enabled    bool      `json:"enabled" mapstructure:"enabled"`
	Start      time.Time `json:"start" mapstructure:"start"`
	End        time.Time `json:"end" mapstructure:"end"`
	Adjustment `mapstructure:",squash"`
}

// Touches は宿泊のいずれかの泊が特定期間に含まれるかを返します
func (s SpecialDate) Touches(checkIn, checkOut time.Time) bool {
	// 泊は [checkIn, checkOut) なので、期間の終了日を含めるため翌日までの半開区間で比較する
	start := DateOf(s.Start)
	end := DateOf(s.End).AddDate(0, 0, 1)
	return DateOf(checkIn).Before(end) && start.Before(DateOf(checkOut))
}

// LeadTimeDiscount は予約から到着までの日数に基づく割引です
type LeadTimeDiscount struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	DaysBefore int  `json:"days_before" mapstructure:"days_before"`
	Adjustment `mapstructure:",squash"`
}

// DiscountPrecedence は早割と直前割が同時に適用可能な場合の優先順位です
type DiscountPrecedence string

const (
	PrecedenceEarlyBird  DiscountPrecedence = "early_bird"
	PrecedenceLastMinute DiscountPrecedence = "last_minute"
)

// Settings は料金計算・予約処理が参照する設定のスナップショットです
type Settings struct {
	DepositRule         DepositRule        `json:"deposit_rule" mapstructure:"deposit_rule"`
	CancellationRule    CancellationRule   `json:"cancellation_rule" mapstructure:"cancellation_rule"`
	MinimumStayRule     MinimumStayRule    `json:"minimum_stay_rule" mapstructure:"minimum_stay_rule"`
	WeekendPricing      WeekendPricing     `json:"weekend_pricing" mapstructure:"weekend_pricing"`
	SeasonalPricing     SeasonalPricing    `json:"seasonal_pricing" mapstructure:"seasonal_pricing"`
	MonthlyPricing      MonthlyPricing     `json:"monthly_pricing" mapstructure:"monthly_pricing"`
	SpecialDates        []SpecialDate      `json:"special_dates" mapstructure:"special_dates"`
	EarlyBirdDiscount   LeadTimeDiscount   `json:"early_bird_discount" mapstructure:"early_bird_discount"`
	LastMinuteDiscount  LeadTimeDiscount   `json:"last_minute_discount" mapstructure:"last_minute_discount"`
	DiscountPrecedence  DiscountPrecedence `json:"discount_precedence" mapstructure:"discount_precedence"`
	DefaultCheckInTime  string             `json:"default_check_in_time" mapstructure:"default_check_in_time"`
	DefaultCheckOutTime string             `json:"default_check_out_time" mapstructure:"default_check_out_time"`
}

// DefaultSettings は全ての規定が無効な初期設定を返します
func DefaultSettings() Settings {
	return Settings{
		DiscountPrecedence:  PrecedenceEarlyBird,
		DefaultCheckInTime:  "14:00",
		DefaultCheckOutTime: "11:00",
	}
}

// Validate は設定値の整合性を検証します
func (s Settings) Validate() error {
	adjustments := map[string]Adjustment{
		"weekend_pricing":      s.WeekendPricing.Adjustment,
		"early_bird_discount":  s.EarlyBirdDiscount.Adjustment,
		"last_minute_discount": s.LastMinuteDiscount.Adjustment,
	}
	for _, season := range s.SeasonalPricing.Seasons {
		adjustments["season "+season.Name] = season.Adjustment
	}
	for _, m := range s.MonthlyPricing.Months {
		if m.Month < time.January || m.Month > time.December {
			return fmt.Errorf("monthly_pricing: invalid month %d", m.Month)
		}
		adjustments["month "+m.Month.String()] = m.Adjustment
	}
	for _, sd := range s.SpecialDates {
		if sd.End.Before(sd.Start) {
			return fmt.Errorf("special date %q: end is before start", sd.Name)
		}
		adjustments["special date "+sd.Name] = sd.Adjustment
	}
	for name, a := range adjustments {
		if a.Type != "" && a.Type != AdjustmentPercentage && a.Type != AdjustmentFixedAmount {
			return fmt.Errorf("%s: invalid adjustment type %q", name, a.Type)
		}
	}
	if s.DepositRule.Amount < 0 {
		return fmt.Errorf("deposit_rule: amount must not be negative")
	}
	if s.CancellationRule.DaysBeforeCheckIn < 0 || s.MinimumStayRule.Days < 0 {
		return fmt.Errorf("cancellation_rule/minimum_stay_rule: days must not be negative")
	}
	switch s.DiscountPrecedence {
	case "", PrecedenceEarlyBird, PrecedenceLastMinute:
	default:
		return fmt.Errorf("invalid discount_precedence %q", s.DiscountPrecedence)
	}
	return nil
}
