package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/api/middleware"
	"github.com/theluxmining/commerce-backend/api/responses"
	"github.com/theluxmining/commerce-backend/api/validators"
	cartsvc "github.com/theluxmining/commerce-backend/internal/cart"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// CartGet returns the caller's active cart, creating one on first touch.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		cart, err := svc.GetActiveCart(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartAddItem appends or merges a product line.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		cart, err := svc.AddItem(r.Context(), identity, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartUpdateItem sets the quantity for a line already in the cart.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		cart, err := svc.UpdateQuantity(r.Context(), identity, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartRemoveItem drops a product line.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		cart, err := svc.RemoveItem(r.Context(), identity, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartMigrate folds the anonymous session cart into the authenticated
// user's cart after login.
func CartMigrate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if !identity.IsAuthenticated() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required"))
			return
		}

		var payload migrateCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.MigrateIdentity(r.Context(), payload.SessionKey, *identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productID")
	productID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return productID, nil
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"qty" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"qty" validate:"required,min=1"`
}

type migrateCartRequest struct {
	SessionKey string `json:"session_key" validate:"required"`
}

type cartResponse struct {
	ID              uuid.UUID           `json:"id"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	ShippingLine    *types.ShippingLine `json:"shipping_line,omitempty"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	ShippingCents   int                 `json:"shipping_cents"`
	TaxCents        int                 `json:"tax_cents"`
	DiscountCents   int                 `json:"discount_cents"`
	TotalCents      int                 `json:"total_cents"`
	Items           []cartItemResponse  `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type cartItemResponse struct {
	ProductID         uuid.UUID `json:"product_id"`
	ProductName       string    `json:"product_name"`
	ProductSKU        string    `json:"product_sku"`
	Quantity          int       `json:"qty"`
	UnitPriceCents    int       `json:"unit_price_cents"`
	LineSubtotalCents int       `json:"line_subtotal_cents"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}

	return cartResponse{
		ID:              cart.ID,
		Status:          string(cart.Status),
		Currency:        cart.Currency,
		ShippingAddress: cart.ShippingAddress,
		ShippingLine:    cart.ShippingLine,
		SubtotalCents:   cart.SubtotalCents,
		ShippingCents:   cart.ShippingCents,
		TaxCents:        cart.TaxCents,
		DiscountCents:   cart.DiscountCents,
		TotalCents:      cart.TotalCents,
		Items:           items,
		CreatedAt:       cart.CreatedAt,
		UpdatedAt:       cart.UpdatedAt,
	}
}
