package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/api/middleware"
	"github.com/theluxmining/commerce-backend/api/responses"
	ordersvc "github.com/theluxmining/commerce-backend/internal/orders"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/pagination"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// OrdersList returns the caller's order history, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
				return
			}
			params.Limit = limit
		}

		identity := middleware.IdentityFromContext(r.Context())
		rows, next, err := svc.List(r.Context(), identity, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newOrderResponse(&rows[i]))
		}
		responses.WriteSuccess(w, ordersListResponse{Orders: items, NextCursor: next})
	}
}

// OrderGet returns one order; foreign orders are indistinguishable from
// missing ones.
func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		order, err := svc.Get(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type ordersListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	Number          string              `json:"number"`
	PaymentIntentID string              `json:"payment_intent_id"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	ShippingLine    *types.ShippingLine `json:"shipping_line,omitempty"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	ShippingCents   int                 `json:"shipping_cents"`
	TaxCents        int                 `json:"tax_cents"`
	DiscountCents   int                 `json:"discount_cents"`
	TotalCents      int                 `json:"total_cents"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID         uuid.UUID `json:"product_id"`
	ProductName       string    `json:"product_name"`
	ProductSKU        string    `json:"product_sku"`
	Quantity          int       `json:"qty"`
	UnitPriceCents    int       `json:"unit_price_cents"`
	LineSubtotalCents int       `json:"line_subtotal_cents"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			ProductSKU:        item.ProductSKU,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}

	return orderResponse{
		ID:              order.ID,
		Number:          order.Number,
		PaymentIntentID: order.PaymentIntentID,
		Status:          string(order.Status),
		Currency:        order.Currency,
		ShippingAddress: order.ShippingAddress,
		ShippingLine:    order.ShippingLine,
		SubtotalCents:   order.SubtotalCents,
		ShippingCents:   order.ShippingCents,
		TaxCents:        order.TaxCents,
		DiscountCents:   order.DiscountCents,
		TotalCents:      order.TotalCents,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
