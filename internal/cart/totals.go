package cart

import "github.com/theluxmining/commerce-backend/pkg/db/models"

// recalculate rebuilds every derived money field on the cart from its
// lines. Line subtotals are recomputed too so a stale snapshot can
// never leak into the grand total.
func recalculate(c *models.Cart) {
	subtotal := 0
	for i := range c.Items {
		line := &c.Items[i]
		line.LineSubtotalCents = line.UnitPriceCents * line.Quantity
		subtotal += line.LineSubtotalCents
	}

	c.SubtotalCents = subtotal
	c.TotalCents = c.SubtotalCents + c.ShippingCents + c.TaxCents - c.DiscountCents
	if c.TotalCents < 0 {
		c.TotalCents = 0
	}
}

// invalidateShipping drops the quoted shipping line and dependent tax.
// Called on any item mutation: a changed basket weight or value makes
// the previous quote meaningless.
func invalidateShipping(c *models.Cart) {
	c.ShippingLine = nil
	c.ShippingCents = 0
	c.TaxCents = 0
}
