package controllers

import (
	"net/http"
	"strings"

	"github.com/theluxmining/commerce-backend/api/middleware"
	"github.com/theluxmining/commerce-backend/api/responses"
	ordersvc "github.com/theluxmining/commerce-backend/internal/orders"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
)

// CheckoutConfirmation waits for the order materialized from a
// succeeded intent. A not-yet-visible order surfaces as 202 so the
// client can retry or fall back to the orders list.
func CheckoutConfirmation(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		paymentIntentID := strings.TrimSpace(r.URL.Query().Get("payment_intent"))
		if paymentIntentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent query parameter is required"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		order, err := svc.AwaitOrder(r.Context(), identity, paymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
