package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/cart"
	"github.com/theluxmining/commerce-backend/internal/orders"
	"github.com/theluxmining/commerce-backend/internal/payments"
	"github.com/theluxmining/commerce-backend/internal/products"
	"github.com/theluxmining/commerce-backend/pkg/db"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/metrics"
)

// errUnmatchedIntent marks events for intents we never issued; they are
// acknowledged without side effects so the processor stops retrying.
var errUnmatchedIntent = errors.New("no payment row for intent")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	CartRepo          cart.Repository
	PaymentRepo       payments.Repository
	OrderRepo         orders.Repository
	ProductRepo       products.Repository
	EventRepo         EventRepository
	TransactionRunner txRunner
	Metrics           *metrics.CheckoutMetrics
}

// Service turns processor webhook events into order state. The order is
// materialized here, never in the synchronous confirm path: the client
// polls until this handler has committed.
type Service struct {
	cartRepo    cart.Repository
	paymentRepo payments.Repository
	orderRepo   orders.Repository
	productRepo products.Repository
	eventRepo   EventRepository
	txRunner    txRunner
	checkout    *metrics.CheckoutMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.ProductRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repo required")
	}
	if params.EventRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		cartRepo:    params.CartRepo,
		paymentRepo: params.PaymentRepo,
		orderRepo:   params.OrderRepo,
		productRepo: params.ProductRepo,
		eventRepo:   params.EventRepo,
		txRunner:    params.TransactionRunner,
		checkout:    params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.materializeOrder(ctx, event, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.recordPaymentOutcome(ctx, event, &intent, enums.PaymentStatusFailed)
	case stripe.EventTypePaymentIntentCanceled:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.recordPaymentOutcome(ctx, event, &intent, enums.PaymentStatusCanceled)
	default:
		s.checkout.IncWebhook(string(event.Type), "ignored")
		return nil
	}
}

// materializeOrder creates the order, decrements stock, converts the
// cart, and marks the payment row succeeded inside one transaction.
// Replays abort on the orders.payment_intent_id unique index and are
// acknowledged as no-ops.
func (s *Service) materializeOrder(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent) error {
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := s.paymentRepo.WithTx(tx).GetByIntentID(ctx, intent.ID)
		if err != nil {
			if db.IsNotFound(err) {
				return errUnmatchedIntent
			}
			return err
		}

		basket, err := s.cartRepo.WithTx(tx).GetByID(ctx, payment.CartID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order := orderFromCart(basket, payment, now)
		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		for _, line := range basket.Items {
			if err := s.productRepo.DecrementStock(tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		basket.Status = enums.CartStatusConverted
		basket.ConvertedAt = &now
		if err := s.cartRepo.WithTx(tx).Save(ctx, basket); err != nil {
			return err
		}

		payment.Status = enums.PaymentStatusSucceeded
		payment.DeclineCode = ""
		payment.FailureMessage = ""
		if err := s.paymentRepo.WithTx(tx).Save(ctx, payment); err != nil {
			return err
		}

		return s.eventRepo.WithTx(tx).Record(ctx, auditRow(event))
	})

	switch {
	case txErr == nil:
		s.checkout.IncWebhook(string(event.Type), "processed")
		return nil
	case errors.Is(txErr, errUnmatchedIntent):
		s.checkout.IncWebhook(string(event.Type), "unmatched")
		return nil
	case db.IsUniqueViolation(txErr):
		s.checkout.IncWebhook(string(event.Type), "replay")
		return nil
	default:
		s.checkout.IncWebhook(string(event.Type), "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "materialize order")
	}
}

// recordPaymentOutcome writes the terminal processor status onto the
// payment row so the confirm path can surface it without another
// processor round trip.
func (s *Service) recordPaymentOutcome(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent, status enums.PaymentStatus) error {
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	payment, err := s.paymentRepo.GetByIntentID(ctx, intent.ID)
	if err != nil {
		if db.IsNotFound(err) {
			s.checkout.IncWebhook(string(event.Type), "unmatched")
			return nil
		}
		s.checkout.IncWebhook(string(event.Type), "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	payment.Status = status
	if status == enums.PaymentStatusFailed {
		code, message := declineFromIntent(intent)
		payment.DeclineCode = code
		payment.FailureMessage = payments.DeclineMessage(code, message)
	}
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		s.checkout.IncWebhook(string(event.Type), "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}

	if err := s.eventRepo.Record(ctx, auditRow(event)); err != nil && !db.IsUniqueViolation(err) {
		s.checkout.IncWebhook(string(event.Type), "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record event")
	}

	s.checkout.IncWebhook(string(event.Type), "processed")
	return nil
}

func orderFromCart(basket *models.Cart, payment *models.Payment, now time.Time) *models.Order {
	order := &models.Order{
		Number:          orders.NewOrderNumber(now),
		UserID:          payment.UserID,
		SessionKey:      payment.SessionKey,
		CartID:          basket.ID,
		PaymentIntentID: payment.PaymentIntentID,
		Status:          enums.OrderStatusPaid,
		Currency:        basket.Currency,
		ShippingAddress: basket.ShippingAddress,
		ShippingLine:    basket.ShippingLine,
		SubtotalCents:   basket.SubtotalCents,
		ShippingCents:   basket.ShippingCents,
		TaxCents:        basket.TaxCents,
		DiscountCents:   basket.DiscountCents,
		TotalCents:      basket.TotalCents,
	}
	for _, line := range basket.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:         line.ProductID,
			ProductName:       line.ProductName,
			ProductSKU:        line.ProductSKU,
			Quantity:          line.Quantity,
			UnitPriceCents:    line.UnitPriceCents,
			LineSubtotalCents: line.LineSubtotalCents,
		})
	}
	return order
}

func auditRow(event *stripe.Event) *models.WebhookEvent {
	return &models.WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   event.Data.Raw,
	}
}

func declineFromIntent(intent *stripe.PaymentIntent) (code, message string) {
	if intent.LastPaymentError == nil {
		return "", ""
	}
	code = string(intent.LastPaymentError.DeclineCode)
	if code == "" {
		code = string(intent.LastPaymentError.Code)
	}
	return code, intent.LastPaymentError.Msg
}
