package payments

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
	"github.com/theluxmining/commerce-backend/pkg/metrics"
	"github.com/theluxmining/commerce-backend/pkg/stripe"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

type cartStore interface {
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error)
}

// ConfirmInput identifies the intent to confirm and the payment method
// supplied by the client.
type ConfirmInput struct {
	PaymentIntentID string
	PaymentMethodID string
	ReturnURL       string
}

// ConfirmResult reports where the attempt landed. On a step-up the
// client secret is returned so the client can run the challenge.
type ConfirmResult struct {
	Payment      *models.Payment
	Outcome      AttemptState
	ClientSecret string
}

// Service orchestrates payment intents against the processor. Amounts
// always come from the server-side cart; the cart itself is never
// cleared here — order materialization owns that.
type Service interface {
	CreateIntent(ctx context.Context, identity types.Identity) (*models.Payment, error)
	Confirm(ctx context.Context, identity types.Identity, in ConfirmInput) (*ConfirmResult, error)
}

type service struct {
	repo           Repository
	carts          cartStore
	gateway        stripe.Gateway
	checkout       *metrics.CheckoutMetrics
	confirmTimeout time.Duration
	currency       string
}

// NewService builds the payment service.
func NewService(repo Repository, carts cartStore, gateway stripe.Gateway, checkout *metrics.CheckoutMetrics, confirmTimeout time.Duration, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	if currency == "" {
		currency = "USD"
	}
	return &service{
		repo:           repo,
		carts:          carts,
		gateway:        gateway,
		checkout:       checkout,
		confirmTimeout: confirmTimeout,
		currency:       currency,
	}, nil
}

// CreateIntent mints a processor intent for the cart's current total.
// The amount is frozen on the payment row; any later cart drift is
// caught by the stale-intent guard at confirmation.
func (s *service) CreateIntent(ctx context.Context, identity types.Identity) (*models.Payment, error) {
	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if cart.ShippingLine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping must be quoted before payment")
	}
	if cart.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart total must be greater than zero")
	}

	attempt := NewAttempt()
	if err := attempt.Transition(StateIntentRequested); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "begin payment attempt")
	}

	in := stripe.CreateIntentInput{
		AmountCents: cart.TotalCents,
		Currency:    s.currency,
		CartID:      cart.ID.String(),
	}
	if identity.IsAuthenticated() {
		in.UserID = identity.UserID.String()
	} else {
		in.SessionKey = *identity.SessionKey
	}

	intent, err := s.gateway.CreateIntent(ctx, in)
	if err != nil {
		s.checkout.IncIntent("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	payment := &models.Payment{
		CartID:          cart.ID,
		UserID:          identity.UserID,
		SessionKey:      identity.SessionKey,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     cart.TotalCents,
		Currency:        s.currency,
		Status:          paymentStatusFrom(intent.Status),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		s.checkout.IncIntent("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	s.checkout.IncIntent("created")
	return payment, nil
}

// Confirm drives the intent to a terminal state or a step-up
// challenge. A cart whose total no longer matches the frozen amount is
// rejected before the processor is touched.
func (s *service) Confirm(ctx context.Context, identity types.Identity, in ConfirmInput) (*ConfirmResult, error) {
	if in.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	payment, err := s.loadOwnedPayment(ctx, identity, in.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart.ID != payment.CartID || cart.TotalCents != payment.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeStaleIntent, "cart changed since the payment intent was created").
			WithDetails(map[string]any{
				"intent_amount_cents": payment.AmountCents,
				"cart_total_cents":    cart.TotalCents,
			})
	}

	attempt := resumeFromStatus(payment.Status)

	started := time.Now()
	confirmCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	intent, err := s.gateway.GetIntent(confirmCtx, payment.PaymentIntentID)
	if err != nil {
		s.checkout.IncConfirm("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}

	// Step-up fold-in: after the client completes the challenge the
	// intent is often already terminal; do not confirm it twice.
	if intent.Status != "succeeded" && needsConfirmation(intent.Status) {
		if err := attempt.Transition(StateAwaitingConfirmation); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance payment attempt")
		}
		intent, err = s.gateway.ConfirmIntent(confirmCtx, stripe.ConfirmIntentInput{
			IntentID:        payment.PaymentIntentID,
			PaymentMethodID: in.PaymentMethodID,
			ReturnURL:       in.ReturnURL,
		})
		if err != nil {
			return nil, s.recordDecline(ctx, payment, attempt, intent, err)
		}
	}

	s.checkout.ObserveConfirmDuration(time.Since(started))
	return s.resolveOutcome(ctx, payment, attempt, intent)
}

func (s *service) resolveOutcome(ctx context.Context, payment *models.Payment, attempt *Attempt, intent *stripe.Intent) (*ConfirmResult, error) {
	switch intent.Status {
	case "succeeded":
		if attempt.State() != StateSucceeded {
			if attempt.State() == StateIntentRequested {
				_ = attempt.Transition(StateAwaitingConfirmation)
			}
			if err := attempt.Transition(StateSucceeded); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete payment attempt")
			}
		}
		payment.Status = enums.PaymentStatusSucceeded
		if err := s.repo.Save(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}
		s.checkout.IncConfirm("succeeded")
		return &ConfirmResult{Payment: payment, Outcome: StateSucceeded}, nil

	case "requires_action":
		// Re-polling while the challenge is still open just reports the
		// step-up again.
		if attempt.State() != StateRequiresStepUp {
			if attempt.State() == StateIntentRequested {
				_ = attempt.Transition(StateAwaitingConfirmation)
			}
			if err := attempt.Transition(StateRequiresStepUp); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance payment attempt")
			}
		}
		payment.Status = enums.PaymentStatusRequiresAction
		if err := s.repo.Save(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}
		s.checkout.IncConfirm("step_up")
		return &ConfirmResult{
			Payment:      payment,
			Outcome:      StateRequiresStepUp,
			ClientSecret: payment.ClientSecret,
		}, nil

	case "processing":
		payment.Status = enums.PaymentStatusProcessing
		if err := s.repo.Save(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}
		s.checkout.IncConfirm("processing")
		return &ConfirmResult{Payment: payment, Outcome: StateAwaitingConfirmation}, nil

	default:
		return nil, s.recordDecline(ctx, payment, attempt, intent, nil)
	}
}

// recordDecline persists the failure and surfaces the shopper-facing
// message for the decline code.
func (s *service) recordDecline(ctx context.Context, payment *models.Payment, attempt *Attempt, intent *stripe.Intent, cause error) error {
	_ = attempt.Transition(StateFailed)

	declineCode := ""
	failureMessage := ""
	if intent != nil {
		declineCode = intent.DeclineCode
		failureMessage = intent.FailureMessage
	}
	message := DeclineMessage(declineCode, failureMessage)

	payment.Status = enums.PaymentStatusFailed
	payment.DeclineCode = declineCode
	payment.FailureMessage = message
	if err := s.repo.Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
	}

	s.checkout.IncConfirm("declined")
	declined := pkgerrors.New(pkgerrors.CodePaymentDeclined, message).
		WithDetails(map[string]any{"decline_code": declineCode})
	if cause != nil {
		declined = pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, cause, message).
			WithDetails(map[string]any{"decline_code": declineCode})
	}
	return declined
}

func (s *service) loadOwnedPayment(ctx context.Context, identity types.Identity, intentID string) (*models.Payment, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	payment, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	owned := false
	switch {
	case identity.IsAuthenticated():
		owned = payment.UserID != nil && *payment.UserID == *identity.UserID
	case identity.IsAnonymous():
		owned = payment.SessionKey != nil && *payment.SessionKey == *identity.SessionKey
	}
	if !owned {
		// Report not-found rather than forbidden so intent IDs cannot
		// be probed for existence.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
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

func needsConfirmation(status string) bool {
	switch status {
	case "requires_payment_method", "requires_confirmation":
		return true
	default:
		return false
	}
}

func resumeFromStatus(status enums.PaymentStatus) *Attempt {
	switch status {
	case enums.PaymentStatusRequiresAction:
		return ResumeAttempt(StateRequiresStepUp)
	case enums.PaymentStatusProcessing:
		return ResumeAttempt(StateAwaitingConfirmation)
	case enums.PaymentStatusSucceeded:
		return ResumeAttempt(StateSucceeded)
	case enums.PaymentStatusFailed:
		// A declined payment stays retryable on the same intent; the
		// next confirm starts over with a fresh method.
		return ResumeAttempt(StateIntentRequested)
	default:
		return ResumeAttempt(StateIntentRequested)
	}
}

func paymentStatusFrom(raw string) enums.PaymentStatus {
	if status, err := enums.ParsePaymentStatus(raw); err == nil {
		return status
	}
	return enums.PaymentStatusRequiresPaymentMethod
}
