package domain

import (
	"math"
	"testing"
)

func TestWeightedAveragePrice(t *testing.T) {
	got := WeightedAveragePrice(100, 10, 90, 10)
	if math.Abs(got-95) > 1e-9 {
		t.Fatalf("expected 95, got %v", got)
	}

	got = WeightedAveragePrice(100, 30, 90, 10)
	if math.Abs(got-97.5) > 1e-9 {
		t.Fatalf("expected 97.5, got %v", got)
	}
}

func TestWeightedAveragePriceZeroQuantity(t *testing.T) {
	got := WeightedAveragePrice(100, 0, 0, 0)
	if got != 100 {
		t.Fatalf("expected fallback to first price, got %v", got)
	}
}

func TestApplySlippageLong(t *testing.T) {
	got, err := ApplySlippage(100, 0.1, SideLong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-100.1) > 1e-9 {
		t.Fatalf("expected 100.1, got %v", got)
	}
}

func TestApplySlippageShort(t *testing.T) {
	got, err := ApplySlippage(100, 0.1, SideShort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-99.9) > 1e-9 {
		t.Fatalf("expected 99.9, got %v", got)
	}
}

func TestApplySlippageZeroPct(t *testing.T) {
	got, err := ApplySlippage(42.5, 0, SideLong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.5 {
		t.Fatalf("expected unchanged price, got %v", got)
	}
}

func TestApplySlippageRejectsBadInput(t *testing.T) {
	if _, err := ApplySlippage(0, 0.1, SideLong); err == nil {
		t.Fatal("expected error for zero price")
	}
	if _, err := ApplySlippage(-5, 0.1, SideLong); err == nil {
		t.Fatal("expected error for negative price")
	}
	if _, err := ApplySlippage(100, -0.1, SideLong); err == nil {
		t.Fatal("expected error for negative slippage")
	}
}
