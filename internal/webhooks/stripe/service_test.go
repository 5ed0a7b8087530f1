package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/internal/cart"
	"github.com/theluxmining/commerce-backend/internal/orders"
	"github.com/theluxmining/commerce-backend/internal/payments"
	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/pagination"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

func TestSucceededEventMaterializesOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	basket := quotedCart(userID)
	payment := paymentFor(basket)

	cartRepo := &stubCartRepo{cart: basket}
	paymentRepo := &stubPaymentRepo{payment: payment}
	orderRepo := &stubOrderRepo{}
	productRepo := &stubProductRepo{decrements: map[uuid.UUID]int{}}
	eventRepo := &stubEventRepo{}
	svc := newTestService(t, cartRepo, paymentRepo, orderRepo, productRepo, eventRepo)

	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", stripe.EventTypePaymentIntentSucceeded, `{"id":"pi_1"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := orderRepo.created
	if order == nil {
		t.Fatal("expected an order to be created")
	}
	if !regexp.MustCompile(`^LUX-\d{8}-\d{4}$`).MatchString(order.Number) {
		t.Fatalf("bad order number %q", order.Number)
	}
	if order.PaymentIntentID != "pi_1" {
		t.Fatalf("wrong intent on order: %q", order.PaymentIntentID)
	}
	if order.TotalCents != basket.TotalCents || order.TaxCents != basket.TaxCents {
		t.Fatalf("order money does not match cart: %+v", order)
	}
	if len(order.Items) != len(basket.Items) {
		t.Fatalf("expected %d order lines, got %d", len(basket.Items), len(order.Items))
	}
	if order.Items[0].UnitPriceCents != basket.Items[0].UnitPriceCents {
		t.Fatal("order line must freeze the cart unit price")
	}

	if basket.Status != enums.CartStatusConverted || basket.ConvertedAt == nil {
		t.Fatalf("cart must be converted, got %s", basket.Status)
	}
	if payment.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("payment must be succeeded, got %s", payment.Status)
	}
	for _, line := range basket.Items {
		if productRepo.decrements[line.ProductID] != line.Quantity {
			t.Fatalf("stock not decremented for %s", line.ProductID)
		}
	}
	if eventRepo.recorded == nil || eventRepo.recorded.EventID != "evt_1" {
		t.Fatal("audit row must be recorded")
	}
}

func TestSucceededEventReplayIsNoOp(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	basket := quotedCart(userID)
	cartRepo := &stubCartRepo{cart: basket}
	paymentRepo := &stubPaymentRepo{payment: paymentFor(basket)}
	orderRepo := &stubOrderRepo{createErr: errors.New("UNIQUE constraint failed: orders.payment_intent_id")}
	svc := newTestService(t, cartRepo, paymentRepo, orderRepo, &stubProductRepo{decrements: map[uuid.UUID]int{}}, &stubEventRepo{})

	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", stripe.EventTypePaymentIntentSucceeded, `{"id":"pi_1"}`)); err != nil {
		t.Fatalf("replay must be acknowledged, got %v", err)
	}
	if cartRepo.saves != 0 {
		t.Fatal("replay must not touch the cart")
	}
}

func TestSucceededEventForUnknownIntentIsAcknowledged(t *testing.T) {
	t.Parallel()

	orderRepo := &stubOrderRepo{}
	svc := newTestService(t, &stubCartRepo{}, &stubPaymentRepo{}, orderRepo, &stubProductRepo{decrements: map[uuid.UUID]int{}}, &stubEventRepo{})

	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", stripe.EventTypePaymentIntentSucceeded, `{"id":"pi_unknown"}`)); err != nil {
		t.Fatalf("unmatched intent must be acknowledged, got %v", err)
	}
	if orderRepo.created != nil {
		t.Fatal("no order may be created for a foreign intent")
	}
}

func TestFailedEventRecordsDecline(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	basket := quotedCart(userID)
	payment := paymentFor(basket)
	paymentRepo := &stubPaymentRepo{payment: payment}
	svc := newTestService(t, &stubCartRepo{cart: basket}, paymentRepo, &stubOrderRepo{}, &stubProductRepo{decrements: map[uuid.UUID]int{}}, &stubEventRepo{})

	raw := `{"id":"pi_1","last_payment_error":{"decline_code":"insufficient_funds"}}`
	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", stripe.EventTypePaymentIntentPaymentFailed, raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %s", payment.Status)
	}
	if payment.DeclineCode != "insufficient_funds" {
		t.Fatalf("decline code not recorded: %q", payment.DeclineCode)
	}
	if payment.FailureMessage != "Your card has insufficient funds. Please use a different payment method." {
		t.Fatalf("unexpected failure message %q", payment.FailureMessage)
	}
}

func TestCanceledEventSetsStatus(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	basket := quotedCart(userID)
	payment := paymentFor(basket)
	svc := newTestService(t, &stubCartRepo{cart: basket}, &stubPaymentRepo{payment: payment}, &stubOrderRepo{}, &stubProductRepo{decrements: map[uuid.UUID]int{}}, &stubEventRepo{})

	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", stripe.EventTypePaymentIntentCanceled, `{"id":"pi_1"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != enums.PaymentStatusCanceled {
		t.Fatalf("expected canceled status, got %s", payment.Status)
	}
}

func TestUnhandledEventTypesAreIgnored(t *testing.T) {
	t.Parallel()

	orderRepo := &stubOrderRepo{}
	paymentRepo := &stubPaymentRepo{}
	svc := newTestService(t, &stubCartRepo{}, paymentRepo, orderRepo, &stubProductRepo{decrements: map[uuid.UUID]int{}}, &stubEventRepo{})

	if err := svc.HandleEvent(context.Background(), intentEvent("evt_1", "charge.refunded", `{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderRepo.created != nil || paymentRepo.saves != 0 {
		t.Fatal("ignored events must not mutate anything")
	}
}

func TestIdempotencyGuardMarksOnce(t *testing.T) {
	t.Parallel()

	store := &stubIdempotencyStore{keys: map[string]struct{}{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe_webhook")
	if err != nil {
		t.Fatalf("building guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first check must mark as new, got seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("second check must report already seen, got seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if seen {
		t.Fatal("mark must be reusable after delete")
	}
}

func quotedCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{
		ID:         uuid.New(),
		UserID:     &userID,
		Status:     enums.CartStatusActive,
		Currency:   "USD",
		ShippingAddress: &types.Address{
			FullName: "Ada Lovelace", Line1: "12 Analytical Way",
			City: "Reno", State: "NV", PostalCode: "89501", Country: "US",
		},
		ShippingLine:  &types.ShippingLine{Method: enums.ShippingMethodStandard, CostCents: 500},
		SubtotalCents: 5000,
		ShippingCents: 500,
		TaxCents:      210,
		TotalCents:    5710,
		Items: []models.CartItem{
			{ProductID: uuid.New(), ProductName: "Widget", ProductSKU: "WID-1", Quantity: 2, UnitPriceCents: 2500, LineSubtotalCents: 5000},
		},
	}
}

func paymentFor(basket *models.Cart) *models.Payment {
	return &models.Payment{
		ID:              uuid.New(),
		CartID:          basket.ID,
		UserID:          basket.UserID,
		PaymentIntentID: "pi_1",
		AmountCents:     basket.TotalCents,
		Currency:        "USD",
		Status:          enums.PaymentStatusProcessing,
	}
}

func intentEvent(id string, eventType stripe.EventType, raw string) *stripe.Event {
	return &stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func newTestService(t *testing.T, cartRepo cart.Repository, paymentRepo payments.Repository, orderRepo orders.Repository, productRepo *stubProductRepo, eventRepo EventRepository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		CartRepo:          cartRepo,
		PaymentRepo:       paymentRepo,
		OrderRepo:         orderRepo,
		ProductRepo:       productRepo,
		EventRepo:         eventRepo,
		TransactionRunner: stubTxRunner{},
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCartRepo struct {
	cart  *models.Cart
	saves int
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) Create(ctx context.Context, c *models.Cart) error { return nil }

func (s *stubCartRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	if s.cart != nil && s.cart.ID == id {
		return s.cart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) Save(ctx context.Context, c *models.Cart) error {
	s.saves++
	s.cart = c
	return nil
}

func (s *stubCartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error { return nil }

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

type stubPaymentRepo struct {
	payment *models.Payment
	saves   int
}

func (s *stubPaymentRepo) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubPaymentRepo) Create(ctx context.Context, p *models.Payment) error { return nil }

func (s *stubPaymentRepo) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	if s.payment != nil && s.payment.PaymentIntentID == intentID {
		return s.payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) LatestForCart(ctx context.Context, cartID uuid.UUID) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) Save(ctx context.Context, p *models.Payment) error {
	s.saves++
	s.payment = p
	return nil
}

type stubOrderRepo struct {
	created   *models.Order
	createErr error
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = order
	return nil
}

func (s *stubOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindByIntentAndIdentity(ctx context.Context, intentID string, identity types.Identity) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) ListForIdentity(ctx context.Context, identity types.Identity, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

type stubProductRepo struct {
	decrements map[uuid.UUID]int
}

func (s *stubProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProductRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	return nil, nil
}

func (s *stubProductRepo) DecrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	s.decrements[productID] += quantity
	return nil
}

type stubEventRepo struct {
	recorded *models.WebhookEvent
}

func (s *stubEventRepo) WithTx(tx *gorm.DB) EventRepository { return s }

func (s *stubEventRepo) Record(ctx context.Context, event *models.WebhookEvent) error {
	s.recorded = event
	return nil
}

type stubIdempotencyStore struct {
	keys map[string]struct{}
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	if _, ok := s.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}
