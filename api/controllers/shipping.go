package controllers

import (
	"net/http"

	"github.com/theluxmining/commerce-backend/api/middleware"
	"github.com/theluxmining/commerce-backend/api/responses"
	"github.com/theluxmining/commerce-backend/api/validators"
	shippingsvc "github.com/theluxmining/commerce-backend/internal/shipping"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// CartQuote rates the cart for a destination. With an address it runs a
// fresh quote (standard method applied by default); with only a method
// it switches the selection against the stored address.
func CartQuote(svc shippingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		if payload.Address == nil {
			if payload.ShippingMethod == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "address or shipping_method is required"))
				return
			}
			method, err := enums.ParseShippingMethod(payload.ShippingMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method"))
				return
			}
			cart, err := svc.SelectMethod(r.Context(), identity, method)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, quoteResponse{Cart: newCartResponse(cart)})
			return
		}

		result, err := svc.Quote(r.Context(), identity, *payload.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart := result.Cart
		if payload.ShippingMethod != "" && payload.ShippingMethod != string(enums.ShippingMethodStandard) {
			method, err := enums.ParseShippingMethod(payload.ShippingMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method"))
				return
			}
			cart, err = svc.SelectMethod(r.Context(), identity, method)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, quoteResponse{
			Cart:    newCartResponse(cart),
			Methods: result.Methods,
		})
	}
}

type quoteRequest struct {
	Address        *types.Address `json:"address,omitempty"`
	ShippingMethod string         `json:"shipping_method,omitempty"`
}

type quoteResponse struct {
	Cart    cartResponse          `json:"cart"`
	Methods []types.ShippingQuote `json:"methods,omitempty"`
}
