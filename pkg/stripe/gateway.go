package stripe

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// Intent is the gateway-neutral view of a payment intent that the
// checkout service works with.
type Intent struct {
	ID             string
	ClientSecret   string
	AmountCents    int
	Currency       string
	Status         string
	DeclineCode    string
	FailureMessage string
}

// CreateIntentInput carries everything needed to mint a new intent.
type CreateIntentInput struct {
	AmountCents int
	Currency    string
	CartID      string
	UserID      string
	SessionKey  string
}

// ConfirmIntentInput confirms an existing intent with a payment method.
type ConfirmIntentInput struct {
	IntentID        string
	PaymentMethodID string
	ReturnURL       string
}

// Gateway exposes the subset of processor operations required by the
// checkout service so it can be stubbed in tests.
type Gateway interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	ConfirmIntent(ctx context.Context, in ConfirmIntentInput) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

type gateway struct{}

// NewGateway wraps the initialized Stripe client behind the Gateway
// interface.
func NewGateway(api *Client) Gateway {
	if api == nil {
		return nil
	}
	return &gateway{}
}

func (g *gateway) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(in.AmountCents)),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("cart_id", in.CartID)
	if in.UserID != "" {
		params.AddMetadata("user_id", in.UserID)
	}
	if in.SessionKey != "" {
		params.AddMetadata("session_key", in.SessionKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(pi), nil
}

func (g *gateway) ConfirmIntent(ctx context.Context, in ConfirmIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if in.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(in.PaymentMethodID)
	}
	if in.ReturnURL != "" {
		params.ReturnURL = stripe.String(in.ReturnURL)
	}

	pi, err := paymentintent.Confirm(in.IntentID, params)
	if err != nil {
		return intentFromError(err), err
	}
	return fromStripeIntent(pi), nil
}

func (g *gateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(pi), nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	out := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  int(pi.Amount),
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}
	if pi.LastPaymentError != nil {
		out.DeclineCode = string(pi.LastPaymentError.DeclineCode)
		if out.DeclineCode == "" {
			out.DeclineCode = string(pi.LastPaymentError.Code)
		}
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

// intentFromError pulls the intent snapshot out of a card error so a
// decline still surfaces the processor's decline code.
func intentFromError(err error) *Intent {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) || stripeErr.PaymentIntent == nil {
		return nil
	}
	out := fromStripeIntent(stripeErr.PaymentIntent)
	if out.DeclineCode == "" {
		out.DeclineCode = string(stripeErr.DeclineCode)
	}
	if out.DeclineCode == "" {
		out.DeclineCode = string(stripeErr.Code)
	}
	if out.FailureMessage == "" {
		out.FailureMessage = stripeErr.Msg
	}
	return out
}
