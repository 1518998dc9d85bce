// Package pricing は滞在料金を料金規定の組み合わせから計算します
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// RuleKind は適用された料金規定の種類です
type RuleKind string

const (
	RuleSpecialDate RuleKind = "special_date"
	RuleSeasonal    RuleKind = "seasonal"
	RuleMonthly     RuleKind = "monthly"
	RuleWeekend     RuleKind = "weekend"
	RuleEarlyBird   RuleKind = "early_bird"
	RuleLastMinute  RuleKind = "last_minute"
)

// AppliedAdjustment は料金計算で適用された調整の明細です
type AppliedAdjustment struct {
	Kind   RuleKind        `json:"kind"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// PriceBreakdown は料金計算の結果です
type PriceBreakdown struct {
	Nights          int                 `json:"nights"`
	NightlyPrice    decimal.Decimal     `json:"nightly_price"`
	BasePrice       decimal.Decimal     `json:"base_price"`
	AdjustedTotal   decimal.Decimal     `json:"adjusted_total"`
	DepositAmount   decimal.Decimal     `json:"deposit_amount"`
	PaidAmount      decimal.Decimal     `json:"paid_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	Adjustments     []AppliedAdjustment `json:"adjustments"`
}

// Overrides はオペレーターによる計算の上書きです
type Overrides struct {
	// CustomTotal が指定された場合は 単価×泊数 の代わりに基本料金として使います
	CustomTotal *decimal.Decimal `json:"custom_total,omitempty"`
	// DepositReceived は予約時点で手付金を受領済みかどうかです
	DepositReceived bool `json:"deposit_received"`
}

// stay は1件の見積りで各規定が参照する滞在情報です
type stay struct {
	checkIn  time.Time
	checkOut time.Time
	bookedAt time.Time
	nights   int
}

// step は1つの規定段階です。段階開始時点の合計に対する調整を返します
type step func(s stay, total decimal.Decimal) []AppliedAdjustment

// Engine は設定のスナップショットに基づいて料金を計算します
type Engine struct {
	settings model.Settings
}

// NewEngine は新しいEngineを作成します
func NewEngine(settings model.Settings) *Engine {
	return &Engine{settings: settings}
}

// Price は滞在の料金内訳を計算します
// 規定は 特定日 → シーズン → 月別 → 週末 → 早割/直前割 の固定順で適用され、
// 各段階の終わりに一度だけ四捨五入します
func (e *Engine) Price(unit model.Unit, checkIn, checkOut, bookedAt time.Time, overrides Overrides) (PriceBreakdown, error) {
	nights := model.DaysBetween(checkIn, checkOut)
	if nights < 1 {
		return PriceBreakdown{}, fmt.Errorf("%w: check-out must be after check-in", model.ErrInvalidDateRange)
	}
	if rule := e.settings.MinimumStayRule; rule.Enabled && nights < rule.Days {
		return PriceBreakdown{}, fmt.Errorf("%w: minimum stay is %d nights", model.ErrInvalidDateRange, rule.Days)
	}

	s := stay{
		checkIn:  model.DateOf(checkIn),
		checkOut: model.DateOf(checkOut),
		bookedAt: bookedAt,
		nights:   nights,
	}

	base := unit.DailyPrice.Mul(decimal.NewFromInt(int64(nights)))
	if overrides.CustomTotal != nil {
		base = *overrides.CustomTotal
	}
	base = model.RoundHalfUp(model.FloorZero(base))

	total := base
	applied := make([]AppliedAdjustment, 0)
	for _, st := range e.steps() {
		adjustments := st(s, total)
		if len(adjustments) == 0 {
			continue
		}
		sum := decimal.Zero
		for _, a := range adjustments {
			sum = sum.Add(a.Amount)
		}
		total = model.RoundHalfUp(model.FloorZero(total.Add(sum)))
		applied = append(applied, adjustments...)
	}

	deposit := e.deposit(total)
	paid := decimal.Zero
	if overrides.DepositReceived {
		paid = deposit
	}

	return PriceBreakdown{
		Nights:          nights,
		NightlyPrice:    unit.DailyPrice,
		BasePrice:       base,
		AdjustedTotal:   total,
		DepositAmount:   deposit,
		PaidAmount:      paid,
		RemainingAmount: total.Sub(paid),
		Adjustments:     applied,
	}, nil
}

func (e *Engine) steps() []step {
	return []step{
		e.specialDates,
		e.seasonal,
		e.monthly,
		e.weekend,
		e.leadTime,
	}
}

// deposit は手付金額を決めます。明示的な金額がなければ合計の20%です
func (e *Engine) deposit(total decimal.Decimal) decimal.Decimal {
	deposit := model.RoundHalfUp(model.PercentOf(total, decimal.NewFromInt(model.DefaultDepositPercent)))
	if rule := e.settings.DepositRule; rule.Enabled && rule.Amount > 0 {
		deposit = model.RoundHalfUp(decimal.NewFromFloat(rule.Amount))
	}
	return decimal.Min(deposit, total)
}

func (e *Engine) specialDates(s stay, total decimal.Decimal) []AppliedAdjustment {
	var out []AppliedAdjustment
	for _, sd := range e.settings.SpecialDates {
		if !sd.Enabled || !sd.Touches(s.checkIn, s.checkOut) {
			continue
		}
		out = append(out, AppliedAdjustment{Kind: RuleSpecialDate, Label: sd.Name, Amount: sd.Apply(total)})
	}
	return out
}

func (e *Engine) seasonal(s stay, total decimal.Decimal) []AppliedAdjustment {
	if !e.settings.SeasonalPricing.Enabled {
		return nil
	}
	var out []AppliedAdjustment
	for _, season := range e.settings.SeasonalPricing.Seasons {
		if season.Covers(s.checkIn.Month()) {
			out = append(out, AppliedAdjustment{Kind: RuleSeasonal, Label: season.Name, Amount: season.Apply(total)})
		}
	}
	return out
}

func (e *Engine) monthly(s stay, total decimal.Decimal) []AppliedAdjustment {
	if !e.settings.MonthlyPricing.Enabled {
		return nil
	}
	for _, m := range e.settings.MonthlyPricing.Months {
		if m.Month == s.checkIn.Month() {
			return []AppliedAdjustment{{Kind: RuleMonthly, Label: m.Month.String(), Amount: m.Apply(total)}}
		}
	}
	return nil
}

// weekend は週末の泊ごとに、その時点の1泊あたり料金に対する調整を合算します
func (e *Engine) weekend(s stay, total decimal.Decimal) []AppliedAdjustment {
	w := e.settings.WeekendPricing
	if !w.Enabled {
		return nil
	}
	nightly := total.Div(decimal.NewFromInt(int64(s.nights)))
	sum := decimal.Zero
	count := 0
	for _, night := range model.Nights(s.checkIn, s.checkOut) {
		if w.IsWeekendNight(night) {
			sum = sum.Add(w.Apply(nightly))
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return []AppliedAdjustment{{Kind: RuleWeekend, Label: fmt.Sprintf("%d weekend night(s)", count), Amount: sum}}
}

// leadTime は早割と直前割を適用します
// 両方が対象になる場合は設定された優先順位に従っていずれか一方のみ適用します
func (e *Engine) leadTime(s stay, total decimal.Decimal) []AppliedAdjustment {
	lead := model.DaysBetween(s.bookedAt, s.checkIn)
	eb := e.settings.EarlyBirdDiscount
	lm := e.settings.LastMinuteDiscount
	earlyBird := eb.Enabled && lead >= eb.DaysBefore
	lastMinute := lm.Enabled && lead <= lm.DaysBefore

	if earlyBird && lastMinute {
		if e.settings.DiscountPrecedence == model.PrecedenceLastMinute {
			earlyBird = false
		} else {
			lastMinute = false
		}
	}

	switch {
	case earlyBird:
		return []AppliedAdjustment{{Kind: RuleEarlyBird, Label: fmt.Sprintf("booked %d days ahead", lead), Amount: eb.Apply(total)}}
	case lastMinute:
		return []AppliedAdjustment{{Kind: RuleLastMinute, Label: fmt.Sprintf("booked %d days ahead", lead), Amount: lm.Apply(total)}}
	}
	return nil
}
