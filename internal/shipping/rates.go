package shipping

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

type methodRate struct {
	baseCents    int
	perKgCents   int
	estimateDays int
}

type countryRates struct {
	standard methodRate
	express  methodRate
}

// Published rates by destination country, USD cents. estimateDays is
// the upper bound of the carrier's transit window.
var shippingRates = map[string]countryRates{
	"US": {
		standard: methodRate{baseCents: 1500, perKgCents: 200, estimateDays: 7},
		express:  methodRate{baseCents: 3500, perKgCents: 400, estimateDays: 3},
	},
	"CA": {
		standard: methodRate{baseCents: 2000, perKgCents: 300, estimateDays: 10},
		express:  methodRate{baseCents: 4500, perKgCents: 500, estimateDays: 5},
	},
	"MX": {
		standard: methodRate{baseCents: 2500, perKgCents: 350, estimateDays: 14},
		express:  methodRate{baseCents: 5000, perKgCents: 600, estimateDays: 7},
	},
	"GB": {
		standard: methodRate{baseCents: 3000, perKgCents: 400, estimateDays: 14},
		express:  methodRate{baseCents: 6000, perKgCents: 700, estimateDays: 7},
	},
	"FR": {
		standard: methodRate{baseCents: 3000, perKgCents: 400, estimateDays: 14},
		express:  methodRate{baseCents: 6000, perKgCents: 700, estimateDays: 7},
	},
	"DE": {
		standard: methodRate{baseCents: 3000, perKgCents: 400, estimateDays: 14},
		express:  methodRate{baseCents: 6000, perKgCents: 700, estimateDays: 7},
	},
	"ES": {
		standard: methodRate{baseCents: 3000, perKgCents: 400, estimateDays: 14},
		express:  methodRate{baseCents: 6000, perKgCents: 700, estimateDays: 7},
	},
	"IT": {
		standard: methodRate{baseCents: 3000, perKgCents: 400, estimateDays: 14},
		express:  methodRate{baseCents: 6000, perKgCents: 700, estimateDays: 7},
	},
	"CN": {
		standard: methodRate{baseCents: 3500, perKgCents: 500, estimateDays: 21},
		express:  methodRate{baseCents: 7000, perKgCents: 800, estimateDays: 10},
	},
	"JP": {
		standard: methodRate{baseCents: 3500, perKgCents: 500, estimateDays: 21},
		express:  methodRate{baseCents: 7000, perKgCents: 800, estimateDays: 10},
	},
	"AU": {
		standard: methodRate{baseCents: 4000, perKgCents: 600, estimateDays: 21},
		express:  methodRate{baseCents: 8000, perKgCents: 900, estimateDays: 10},
	},
}

var defaultRates = countryRates{
	standard: methodRate{baseCents: 4000, perKgCents: 600, estimateDays: 28},
	express:  methodRate{baseCents: 8000, perKgCents: 900, estimateDays: 14},
}

// Country-level tax rates. US is zero here: sales tax is state-level.
var countryTaxRates = map[string]decimal.Decimal{
	"US": decimal.Zero,
	"CA": decimal.RequireFromString("0.13"),
	"MX": decimal.RequireFromString("0.16"),
	"GB": decimal.RequireFromString("0.20"),
	"FR": decimal.RequireFromString("0.20"),
	"DE": decimal.RequireFromString("0.19"),
	"ES": decimal.RequireFromString("0.21"),
	"IT": decimal.RequireFromString("0.22"),
	"CN": decimal.RequireFromString("0.13"),
	"JP": decimal.RequireFromString("0.10"),
	"AU": decimal.RequireFromString("0.10"),
}

var usStateTaxRates = map[string]decimal.Decimal{
	"AL": decimal.RequireFromString("0.04"),
	"AK": decimal.Zero,
	"AZ": decimal.RequireFromString("0.056"),
	"AR": decimal.RequireFromString("0.065"),
	"CA": decimal.RequireFromString("0.0725"),
	"CO": decimal.RequireFromString("0.029"),
	"CT": decimal.RequireFromString("0.0635"),
	"DE": decimal.Zero,
	"FL": decimal.RequireFromString("0.06"),
	"GA": decimal.RequireFromString("0.04"),
	"HI": decimal.RequireFromString("0.04"),
	"ID": decimal.RequireFromString("0.06"),
	"IL": decimal.RequireFromString("0.0625"),
	"IN": decimal.RequireFromString("0.07"),
	"IA": decimal.RequireFromString("0.06"),
	"KS": decimal.RequireFromString("0.065"),
	"KY": decimal.RequireFromString("0.06"),
	"LA": decimal.RequireFromString("0.0445"),
	"ME": decimal.RequireFromString("0.055"),
	"MD": decimal.RequireFromString("0.06"),
	"MA": decimal.RequireFromString("0.0625"),
	"MI": decimal.RequireFromString("0.06"),
	"MN": decimal.RequireFromString("0.06875"),
	"MS": decimal.RequireFromString("0.07"),
	"MO": decimal.RequireFromString("0.04225"),
	"MT": decimal.Zero,
	"NE": decimal.RequireFromString("0.055"),
	"NV": decimal.RequireFromString("0.0685"),
	"NH": decimal.Zero,
	"NJ": decimal.RequireFromString("0.06625"),
	"NM": decimal.RequireFromString("0.05125"),
	"NY": decimal.RequireFromString("0.04"),
	"NC": decimal.RequireFromString("0.0475"),
	"ND": decimal.RequireFromString("0.05"),
	"OH": decimal.RequireFromString("0.0575"),
	"OK": decimal.RequireFromString("0.045"),
	"OR": decimal.Zero,
	"PA": decimal.RequireFromString("0.06"),
	"RI": decimal.RequireFromString("0.07"),
	"SC": decimal.RequireFromString("0.06"),
	"SD": decimal.RequireFromString("0.045"),
	"TN": decimal.RequireFromString("0.07"),
	"TX": decimal.RequireFromString("0.0625"),
	"UT": decimal.RequireFromString("0.0595"),
	"VT": decimal.RequireFromString("0.06"),
	"VA": decimal.RequireFromString("0.053"),
	"WA": decimal.RequireFromString("0.065"),
	"WV": decimal.RequireFromString("0.06"),
	"WI": decimal.RequireFromString("0.05"),
	"WY": decimal.RequireFromString("0.04"),
	"DC": decimal.RequireFromString("0.06"),
}

// TableEngine rates shipments from the published country tables.
type TableEngine struct{}

// NewTableEngine returns the built-in rating engine.
func NewTableEngine() *TableEngine {
	return &TableEngine{}
}

// Rate prices both methods for the destination and resolves the tax
// rate. Unknown countries fall back to the default international tier.
func (e *TableEngine) Rate(_ context.Context, req RateRequest) (*RateResult, error) {
	rates, ok := shippingRates[req.Destination.CountryCode()]
	if !ok {
		rates = defaultRates
	}

	weightKg := decimal.NewFromInt(int64(req.WeightGrams)).Div(decimal.NewFromInt(1000))

	return &RateResult{
		Quotes: []types.ShippingQuote{
			{
				Method:       enums.ShippingMethodStandard,
				CostCents:    costCents(rates.standard, weightKg),
				Carrier:      "Standard Shipping",
				EstimateDays: rates.standard.estimateDays,
			},
			{
				Method:       enums.ShippingMethodExpress,
				CostCents:    costCents(rates.express, weightKg),
				Carrier:      "Express Shipping",
				EstimateDays: rates.express.estimateDays,
			},
		},
		TaxRate: taxRateFor(req.Destination),
	}, nil
}

func costCents(rate methodRate, weightKg decimal.Decimal) int {
	base := decimal.NewFromInt(int64(rate.baseCents))
	perKg := decimal.NewFromInt(int64(rate.perKgCents))
	return int(base.Add(perKg.Mul(weightKg)).Round(0).IntPart())
}

func taxRateFor(dest types.Address) decimal.Decimal {
	country := dest.CountryCode()
	if country == "US" {
		if rate, ok := usStateTaxRates[dest.StateCode()]; ok {
			return rate
		}
		return decimal.Zero
	}
	if rate, ok := countryTaxRates[country]; ok {
		return rate
	}
	return decimal.Zero
}

// TaxCents applies the destination tax rate to a subtotal, rounding
// half away from zero the way the storefront always has.
func TaxCents(subtotalCents int, rate decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(subtotalCents)).Mul(rate).Round(0).IntPart())
}
