package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/theluxmining/commerce-backend/api/middleware"
	"github.com/theluxmining/commerce-backend/api/responses"
	"github.com/theluxmining/commerce-backend/api/validators"
	paymentsvc "github.com/theluxmining/commerce-backend/internal/payments"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/logger"
)

// CheckoutIntent mints a payment intent for the caller's quoted cart.
// The charged amount is always the server-side cart total.
func CheckoutIntent(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		payment, err := svc.CreateIntent(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

// CheckoutConfirm drives the intent toward a terminal state. A step-up
// challenge comes back as a non-error outcome carrying the client
// secret.
func CheckoutConfirm(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.Confirm(r.Context(), identity, paymentsvc.ConfirmInput{
			PaymentIntentID: payload.PaymentIntentID,
			PaymentMethodID: payload.PaymentMethodID,
			ReturnURL:       payload.ReturnURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmResponse{
			Payment:      newPaymentResponse(result.Payment),
			Outcome:      string(result.Outcome),
			ClientSecret: result.ClientSecret,
		})
	}
}

type confirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	ReturnURL       string `json:"return_url,omitempty" validate:"omitempty,url"`
}

type confirmResponse struct {
	Payment      paymentResponse `json:"payment"`
	Outcome      string          `json:"outcome"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	CartID          uuid.UUID `json:"cart_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret,omitempty"`
	AmountCents     int       `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	DeclineCode     string    `json:"decline_code,omitempty"`
	FailureMessage  string    `json:"failure_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	return paymentResponse{
		ID:              payment.ID,
		CartID:          payment.CartID,
		PaymentIntentID: payment.PaymentIntentID,
		ClientSecret:    payment.ClientSecret,
		AmountCents:     payment.AmountCents,
		Currency:        payment.Currency,
		Status:          string(payment.Status),
		DeclineCode:     payment.DeclineCode,
		FailureMessage:  payment.FailureMessage,
		CreatedAt:       payment.CreatedAt,
	}
}
