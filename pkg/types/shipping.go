package types

import "github.com/theluxmining/commerce-backend/pkg/enums"

// ShippingLine is the quoted-and-selected shipping snapshot stored on
// the cart. Carrier pricing is recomputed on every quote, never here.
type ShippingLine struct {
	Method       enums.ShippingMethod `json:"method"`
	CostCents    int                  `json:"cost_cents"`
	Carrier      string               `json:"carrier,omitempty"`
	EstimateDays int                  `json:"estimate_days,omitempty"`
}

// ShippingQuote is one rated option returned by the rating engine.
type ShippingQuote struct {
	Method       enums.ShippingMethod `json:"method"`
	CostCents    int                  `json:"cost_cents"`
	Carrier      string               `json:"carrier"`
	EstimateDays int                  `json:"estimate_days"`
}
