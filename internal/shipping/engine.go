package shipping

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/theluxmining/commerce-backend/pkg/types"
)

// RateRequest describes the basket the rating engine prices.
type RateRequest struct {
	Destination types.Address
	WeightGrams int
}

// RateResult carries every available method plus the tax rate that
// applies at the destination.
type RateResult struct {
	Quotes  []types.ShippingQuote
	TaxRate decimal.Decimal
}

// RatingEngine is the trusted authority for shipping prices and tax
// rates. The built-in table engine implements it; a carrier API
// integration would slot in behind the same interface.
type RatingEngine interface {
	Rate(ctx context.Context, req RateRequest) (*RateResult, error)
}
