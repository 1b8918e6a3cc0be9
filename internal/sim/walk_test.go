package sim

import (
	"math"
	"testing"

	"github.com/okquant/costsim/internal/domain"
)

func asks() []domain.PriceLevel {
	return []domain.PriceLevel{
		{Price: 100, Size: 1.0},
		{Price: 101, Size: 2.0},
		{Price: 102, Size: 3.0},
	}
}

func bids() []domain.PriceLevel {
	return []domain.PriceLevel{
		{Price: 99, Size: 1.0},
		{Price: 98, Size: 2.0},
		{Price: 97, Size: 3.0},
	}
}

func TestWalkBuySingleLevel(t *testing.T) {
	res := WalkBook(domain.OrderSideBuy, 50, asks(), 0)
	if !res.Filled() {
		t.Fatal("expected full fill")
	}
	if res.ExecutedQuote != 50 {
		t.Errorf("quote = %v, want 50", res.ExecutedQuote)
	}
	if res.ExecutedBase != 0.5 {
		t.Errorf("base = %v, want 0.5", res.ExecutedBase)
	}
	if res.LevelsUsed != 1 {
		t.Errorf("levels used = %d, want 1", res.LevelsUsed)
	}
}

func TestWalkBuySpansLevels(t *testing.T) {
	// First level holds 100 quote, so 150 spills into the second.
	res := WalkBook(domain.OrderSideBuy, 150, asks(), 0)
	if !res.Filled() {
		t.Fatal("expected full fill")
	}
	wantBase := 1.0 + 50.0/101
	if math.Abs(res.ExecutedBase-wantBase) > 1e-12 {
		t.Errorf("base = %v, want %v", res.ExecutedBase, wantBase)
	}
	if res.LevelsUsed != 2 {
		t.Errorf("levels used = %d, want 2", res.LevelsUsed)
	}
}

func TestWalkBuyLimitStopsBeforeExpensiveLevel(t *testing.T) {
	res := WalkBook(domain.OrderSideBuy, 1000, asks(), 101)
	// Only the 100 and 101 levels are eligible: 100*1 + 101*2 = 302.
	if res.Filled() {
		t.Fatal("walk crossed beyond the limit")
	}
	if res.ExecutedQuote != 302 {
		t.Errorf("quote = %v, want 302", res.ExecutedQuote)
	}
}

func TestWalkSellCappedByLevelSize(t *testing.T) {
	// 500 quote at 99 needs 5.05 base but the level only holds 1.0.
	res := WalkBook(domain.OrderSideSell, 500, bids()[:1], 0)
	if res.Filled() {
		t.Fatal("expected partial fill")
	}
	if res.ExecutedBase != 1.0 {
		t.Errorf("base = %v, want 1.0", res.ExecutedBase)
	}
	if res.ExecutedQuote != 99 {
		t.Errorf("quote = %v, want 99", res.ExecutedQuote)
	}
}

func TestWalkSellLimitFloor(t *testing.T) {
	res := WalkBook(domain.OrderSideSell, 10_000, bids(), 98)
	// Levels at or above 98: 99*1 + 98*2 = 295 quote.
	if res.ExecutedQuote != 295 {
		t.Errorf("quote = %v, want 295", res.ExecutedQuote)
	}
	if res.LevelsUsed != 2 {
		t.Errorf("levels used = %d, want 2", res.LevelsUsed)
	}
}

func TestWalkEpsilonResidueCountsAsFilled(t *testing.T) {
	res := WalkBook(domain.OrderSideBuy, 100.005, asks()[:1], 0)
	// 100 quote executes; the 0.005 residue is inside the epsilon.
	if !res.Filled() {
		t.Errorf("remaining %v should be treated as filled", res.RemainingQuote)
	}
}

func TestWalkSkipsDegenerateLevels(t *testing.T) {
	levels := []domain.PriceLevel{
		{Price: 0, Size: 5},
		{Price: 100, Size: 0},
		{Price: 101, Size: 1},
	}
	res := WalkBook(domain.OrderSideBuy, 50, levels, 0)
	if res.ExecutedQuote != 50 || res.LevelsUsed != 1 {
		t.Errorf("walk = %+v, want 50 quote from the single usable level", res)
	}
}

func TestWalkZeroQuantity(t *testing.T) {
	res := WalkBook(domain.OrderSideBuy, 0, asks(), 0)
	if res.ExecutedQuote != 0 || res.ExecutedBase != 0 {
		t.Errorf("walk executed on zero quantity: %+v", res)
	}
}
