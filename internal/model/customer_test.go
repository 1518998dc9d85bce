package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeCustomerAggregate(t *testing.T) {
	reservations := []Reservation{
		{ID: "r1", CustomerID: "c1", TotalPrice: decimal.NewFromInt(3000)},
		{ID: "r2", CustomerID: "c2", TotalPrice: decimal.NewFromInt(1000)},
		{ID: "r3", CustomerID: "c1", TotalPrice: decimal.NewFromInt(2200), Status: ReservationStatusCancelled},
	}

	agg := ComputeCustomerAggregate("c1", reservations)
	if agg.TotalReservations != 2 {
		t.Errorf("TotalReservations = %v, want 2", agg.TotalReservations)
	}
	if !agg.TotalSpent.Equal(decimal.NewFromInt(5200)) {
		t.Errorf("TotalSpent = %v, want 5200", agg.TotalSpent)
	}

	// 再計算は何度行っても同じ結果になる
	if again := ComputeCustomerAggregate("c1", reservations); again.TotalReservations != agg.TotalReservations || !again.TotalSpent.Equal(agg.TotalSpent) {
		t.Error("recomputation is not stable")
	}

	all := ComputeCustomerAggregates(reservations)
	if all["c2"].TotalReservations != 1 || !all["c2"].TotalSpent.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("ComputeCustomerAggregates()[c2] = %+v", all["c2"])
	}

	empty := ComputeCustomerAggregate("nobody", reservations)
	if empty.TotalReservations != 0 || !empty.TotalSpent.IsZero() {
		t.Errorf("aggregate for unknown customer = %+v", empty)
	}
}
