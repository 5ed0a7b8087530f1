package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

type cartStore interface {
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

// QuoteResult returns both the rated options and the cart updated with
// the default selection.
type QuoteResult struct {
	Cart    *models.Cart
	Methods []types.ShippingQuote
}

// Service quotes shipping for a cart and records method selection. The
// rating engine is the price authority; nothing client-supplied is
// trusted for money.
type Service interface {
	Quote(ctx context.Context, identity types.Identity, address types.Address) (*QuoteResult, error)
	SelectMethod(ctx context.Context, identity types.Identity, method enums.ShippingMethod) (*models.Cart, error)
}

type service struct {
	carts        cartStore
	engine       RatingEngine
	quoteTimeout time.Duration
}

// NewService builds the shipping service.
func NewService(carts cartStore, engine RatingEngine, quoteTimeout time.Duration) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if engine == nil {
		return nil, fmt.Errorf("rating engine required")
	}
	if quoteTimeout <= 0 {
		quoteTimeout = 10 * time.Second
	}
	return &service{
		carts:        carts,
		engine:       engine,
		quoteTimeout: quoteTimeout,
	}, nil
}

// Quote rates the cart for the destination and applies the standard
// method as the default selection. An engine failure leaves the cart
// exactly as it was: checkout stays blocked until a quote succeeds.
func (s *service) Quote(ctx context.Context, identity types.Identity, address types.Address) (*QuoteResult, error) {
	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if address.Line1 == "" || address.City == "" || address.PostalCode == "" || address.CountryCode() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}

	result, err := s.rate(ctx, address, cart)
	if err != nil {
		return nil, err
	}

	cart.ShippingAddress = &address
	if err := s.apply(ctx, cart, result, enums.ShippingMethodStandard); err != nil {
		return nil, err
	}

	return &QuoteResult{Cart: cart, Methods: result.Quotes}, nil
}

// SelectMethod switches the cart to a previously quoted method. The
// engine is re-run against the stored address so the price is always
// current.
func (s *service) SelectMethod(ctx context.Context, identity types.Identity, method enums.ShippingMethod) (*models.Cart, error) {
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping method")
	}

	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if cart.ShippingAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping quote required before method selection")
	}

	result, err := s.rate(ctx, *cart.ShippingAddress, cart)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, cart, result, method); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) rate(ctx context.Context, address types.Address, cart *models.Cart) (*RateResult, error) {
	rateCtx, cancel := context.WithTimeout(ctx, s.quoteTimeout)
	defer cancel()

	result, err := s.engine.Rate(rateCtx, RateRequest{
		Destination: address,
		WeightGrams: cart.TotalWeightGrams(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeShippingUnavailable, err, "shipping rates unavailable")
	}
	if result == nil || len(result.Quotes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeShippingUnavailable, "no shipping methods for destination")
	}
	return result, nil
}

// apply records the selected quote and rebuilds the money fields. Tax
// is charged on goods only, not on carriage.
func (s *service) apply(ctx context.Context, cart *models.Cart, result *RateResult, method enums.ShippingMethod) error {
	var selected *types.ShippingQuote
	for i := range result.Quotes {
		if result.Quotes[i].Method == method {
			selected = &result.Quotes[i]
			break
		}
	}
	if selected == nil {
		return pkgerrors.New(pkgerrors.CodeShippingUnavailable, "shipping method not offered for destination")
	}

	cart.ShippingLine = &types.ShippingLine{
		Method:       selected.Method,
		CostCents:    selected.CostCents,
		Carrier:      selected.Carrier,
		EstimateDays: selected.EstimateDays,
	}
	cart.ShippingCents = selected.CostCents
	cart.TaxCents = TaxCents(cart.SubtotalCents, result.TaxRate)
	cart.TotalCents = cart.SubtotalCents + cart.ShippingCents + cart.TaxCents - cart.DiscountCents
	if cart.TotalCents < 0 {
		cart.TotalCents = 0
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (s *service) loadCart(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	var (
		cart *models.Cart
		err  error
	)
	if identity.IsAuthenticated() {
		cart, err = s.carts.FindActiveByUser(ctx, *identity.UserID)
	} else {
		cart, err = s.carts.FindActiveBySession(ctx, *identity.SessionKey)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}
