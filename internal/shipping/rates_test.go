package shipping

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

func TestTableEngineRatesKnownCountry(t *testing.T) {
	t.Parallel()

	engine := NewTableEngine()
	result, err := engine.Rate(context.Background(), RateRequest{
		Destination: types.Address{Country: "us", State: "ca"},
		WeightGrams: 2000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byMethod := map[enums.ShippingMethod]types.ShippingQuote{}
	for _, q := range result.Quotes {
		byMethod[q.Method] = q
	}

	// US standard: $15 base + $2/kg * 2kg = $19.
	if got := byMethod[enums.ShippingMethodStandard].CostCents; got != 1900 {
		t.Fatalf("expected standard 1900, got %d", got)
	}
	// US express: $35 base + $4/kg * 2kg = $43.
	if got := byMethod[enums.ShippingMethodExpress].CostCents; got != 4300 {
		t.Fatalf("expected express 4300, got %d", got)
	}
	if !result.TaxRate.Equal(decimal.RequireFromString("0.0725")) {
		t.Fatalf("expected california tax rate, got %s", result.TaxRate)
	}
}

func TestTableEngineFallsBackForUnknownCountry(t *testing.T) {
	t.Parallel()

	engine := NewTableEngine()
	result, err := engine.Rate(context.Background(), RateRequest{
		Destination: types.Address{Country: "BR"},
		WeightGrams: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, q := range result.Quotes {
		switch q.Method {
		case enums.ShippingMethodStandard:
			if q.CostCents != 4000 {
				t.Fatalf("expected default standard 4000, got %d", q.CostCents)
			}
		case enums.ShippingMethodExpress:
			if q.CostCents != 8000 {
				t.Fatalf("expected default express 8000, got %d", q.CostCents)
			}
		}
	}
	if !result.TaxRate.IsZero() {
		t.Fatalf("expected zero tax for unlisted country, got %s", result.TaxRate)
	}
}

func TestTableEngineFractionalPerKg(t *testing.T) {
	t.Parallel()

	engine := NewTableEngine()
	result, err := engine.Rate(context.Background(), RateRequest{
		Destination: types.Address{Country: "MX"},
		WeightGrams: 1500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// MX standard: $25 base + $3.50/kg * 1.5kg = $30.25.
	for _, q := range result.Quotes {
		if q.Method == enums.ShippingMethodStandard && q.CostCents != 3025 {
			t.Fatalf("expected 3025, got %d", q.CostCents)
		}
	}
}

func TestTaxCentsRoundsHalfAwayFromZero(t *testing.T) {
	t.Parallel()

	if got := TaxCents(5000, decimal.RequireFromString("0.042")); got != 210 {
		t.Fatalf("expected 210, got %d", got)
	}
	// 3333 * 0.0725 = 241.6425 -> 242
	if got := TaxCents(3333, decimal.RequireFromString("0.0725")); got != 242 {
		t.Fatalf("expected 242, got %d", got)
	}
	if got := TaxCents(5000, decimal.Zero); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestTaxRateUSStateUnknownIsZero(t *testing.T) {
	t.Parallel()

	if rate := taxRateFor(types.Address{Country: "US", State: "ZZ"}); !rate.IsZero() {
		t.Fatalf("expected zero for unknown state, got %s", rate)
	}
	if rate := taxRateFor(types.Address{Country: "GB"}); !rate.Equal(decimal.RequireFromString("0.20")) {
		t.Fatalf("expected 0.20 VAT, got %s", rate)
	}
}
