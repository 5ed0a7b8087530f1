package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

func anonIdentity(sessionKey string) types.Identity {
	return types.Identity{SessionKey: &sessionKey}
}

func userIdentity(id uuid.UUID) types.Identity {
	return types.Identity{UserID: &id}
}

func TestGetActiveCartCreatesOnFirstTouch(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProductLoader{}, &stubGuard{acquired: true})

	cart, err := svc.GetActiveCart(context.Background(), anonIdentity("sess-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Status != enums.CartStatusActive {
		t.Fatalf("expected active cart, got %s", cart.Status)
	}
	if cart.SessionKey == nil || *cart.SessionKey != "sess-1" {
		t.Fatalf("expected session-owned cart, got %+v", cart)
	}
	if !repo.created {
		t.Fatal("expected lazy create")
	}
}

func TestGetActiveCartRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductLoader{}, &stubGuard{})

	_, err := svc.GetActiveCart(context.Background(), types.Identity{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAddItemSnapshotsPriceAndMergesLines(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
	}}
	loader := &stubProductLoader{product: &models.Product{
		ID:             productID,
		Name:           "Rig Frame",
		SKU:            "RF-1",
		UnitPriceCents: 2500,
		WeightGrams:    500,
		StockQuantity:  10,
		TrackInventory: true,
		Active:         true,
	}}
	svc := newTestService(t, repo, loader, &stubGuard{acquired: true})

	cart, err := svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].UnitPriceCents != 2500 {
		t.Fatalf("expected snapshotted line, got %+v", cart.Items)
	}

	// Catalog reprice must not touch the existing snapshot.
	loader.product.UnitPriceCents = 9900

	cart, err = svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(cart.Items))
	}
	if cart.Items[0].Quantity != 2 || cart.Items[0].UnitPriceCents != 2500 {
		t.Fatalf("expected qty 2 at original price, got %+v", cart.Items[0])
	}
	if cart.SubtotalCents != 5000 {
		t.Fatalf("expected subtotal 5000, got %d", cart.SubtotalCents)
	}
}

func TestAddItemRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
		Items: []models.CartItem{
			{ProductID: productID, Quantity: 2, UnitPriceCents: 2500},
		},
	}}
	loader := &stubProductLoader{product: &models.Product{
		ID:             productID,
		StockQuantity:  3,
		TrackInventory: true,
		Active:         true,
	}}
	svc := newTestService(t, repo, loader, &stubGuard{acquired: true})

	_, err := svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 2)
	if !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
}

func TestAddItemIgnoresStockForUntrackedProduct(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
	}}
	loader := &stubProductLoader{product: &models.Product{
		ID:             productID,
		UnitPriceCents: 1000,
		StockQuantity:  0,
		TrackInventory: false,
		Active:         true,
	}}
	svc := newTestService(t, repo, loader, &stubGuard{acquired: true})

	cart, err := svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 4)
	if err != nil {
		t.Fatalf("untracked product must not hit the stock ceiling: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 4 {
		t.Fatalf("expected line with qty 4, got %+v", cart.Items)
	}
}

func TestAddItemAllowsBackorderBeyondStock(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
	}}
	loader := &stubProductLoader{product: &models.Product{
		ID:             productID,
		UnitPriceCents: 1000,
		StockQuantity:  1,
		TrackInventory: true,
		AllowBackorder: true,
		Active:         true,
	}}
	svc := newTestService(t, repo, loader, &stubGuard{acquired: true})

	cart, err := svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 3)
	if err != nil {
		t.Fatalf("backorderable product must accept demand beyond stock: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected line with qty 3, got %+v", cart.Items)
	}
}

func TestAddItemInvalidatesShippingQuote(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	repo := &stubCartRepo{cart: &models.Cart{
		ID:            uuid.New(),
		SessionKey:    strPtr("sess-1"),
		Status:        enums.CartStatusActive,
		ShippingLine:  &types.ShippingLine{Method: enums.ShippingMethodStandard, CostCents: 500},
		ShippingCents: 500,
		TaxCents:      210,
	}}
	loader := &stubProductLoader{product: &models.Product{
		ID:             productID,
		UnitPriceCents: 1000,
		StockQuantity:  5,
		TrackInventory: true,
		Active:         true,
	}}
	svc := newTestService(t, repo, loader, &stubGuard{acquired: true})

	cart, err := svc.AddItem(context.Background(), anonIdentity("sess-1"), productID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ShippingLine != nil || cart.ShippingCents != 0 || cart.TaxCents != 0 {
		t.Fatalf("expected shipping reset, got %+v", cart)
	}
}

func TestUpdateQuantityRejectsZero(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProductLoader{}, &stubGuard{})

	_, err := svc.UpdateQuantity(context.Background(), anonIdentity("sess-1"), uuid.New(), 0)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveItemMissingLine(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{cart: &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
	}}
	svc := newTestService(t, repo, &stubProductLoader{}, &stubGuard{})

	_, err := svc.RemoveItem(context.Background(), anonIdentity("sess-1"), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMigrateIdentityMergesQuantities(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	sharedProduct := uuid.New()
	anonOnly := uuid.New()

	anonCart := &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
		Items: []models.CartItem{
			{ProductID: sharedProduct, Quantity: 2, UnitPriceCents: 2600},
			{ProductID: anonOnly, Quantity: 1, UnitPriceCents: 1000},
		},
	}
	userCart := &models.Cart{
		ID:     uuid.New(),
		UserID: &userID,
		Status: enums.CartStatusActive,
		Items: []models.CartItem{
			{ProductID: sharedProduct, Quantity: 1, UnitPriceCents: 2500},
		},
	}
	repo := &stubCartRepo{cart: userCart, sessionCart: anonCart}
	svc := newTestService(t, repo, &stubProductLoader{}, &stubGuard{acquired: true})

	merged, err := svc.MigrateIdentity(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 merged lines, got %d", len(merged.Items))
	}
	for _, line := range merged.Items {
		switch line.ProductID {
		case sharedProduct:
			if line.Quantity != 3 {
				t.Fatalf("expected summed qty 3, got %d", line.Quantity)
			}
			if line.UnitPriceCents != 2500 {
				t.Fatalf("expected user cart snapshot to win, got %d", line.UnitPriceCents)
			}
		case anonOnly:
			if line.Quantity != 1 {
				t.Fatalf("expected carried qty 1, got %d", line.Quantity)
			}
		default:
			t.Fatalf("unexpected line %+v", line)
		}
	}
	if anonCart.Status != enums.CartStatusConverted {
		t.Fatalf("expected anonymous cart converted, got %s", anonCart.Status)
	}
}

func TestMigrateIdentityNoAnonymousCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	userCart := &models.Cart{ID: uuid.New(), UserID: &userID, Status: enums.CartStatusActive}
	repo := &stubCartRepo{cart: userCart}
	svc := newTestService(t, repo, &stubProductLoader{}, &stubGuard{acquired: true})

	got, err := svc.MigrateIdentity(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != userCart.ID {
		t.Fatalf("expected user cart back, got %+v", got)
	}
}

func TestMigrateIdentityDeduplicatesConcurrentCalls(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	userCart := &models.Cart{ID: uuid.New(), UserID: &userID, Status: enums.CartStatusActive}
	anonCart := &models.Cart{
		ID:         uuid.New(),
		SessionKey: strPtr("sess-1"),
		Status:     enums.CartStatusActive,
		Items:      []models.CartItem{{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 100}},
	}
	repo := &stubCartRepo{cart: userCart, sessionCart: anonCart}
	svc := newTestService(t, repo, &stubProductLoader{}, &stubGuard{acquired: false})

	got, err := svc.MigrateIdentity(context.Background(), "sess-1", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != userCart.ID {
		t.Fatalf("expected user cart without merge, got %+v", got)
	}
	if len(got.Items) != 0 {
		t.Fatal("guarded migration must not merge again")
	}
}

func newTestService(t *testing.T, repo Repository, loader *stubProductLoader, guard *stubGuard) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, loader, guard)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func strPtr(s string) *string { return &s }

type stubCartRepo struct {
	cart        *models.Cart
	sessionCart *models.Cart
	created     bool
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) error {
	cart.ID = uuid.New()
	s.cart = cart
	s.created = true
	return nil
}

func (s *stubCartRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	if s.cart != nil && s.cart.ID == id {
		return s.cart, nil
	}
	if s.sessionCart != nil && s.sessionCart.ID == id {
		return s.sessionCart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart != nil && s.cart.UserID != nil && *s.cart.UserID == userID && s.cart.Status == enums.CartStatusActive {
		return s.cart, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindActiveBySession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	for _, c := range []*models.Cart{s.cart, s.sessionCart} {
		if c != nil && c.SessionKey != nil && *c.SessionKey == sessionKey && c.Status == enums.CartStatusActive {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) Save(ctx context.Context, cart *models.Cart) error { return nil }

func (s *stubCartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error { return nil }

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductLoader struct {
	product *models.Product
}

func (s *stubProductLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.product == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

type stubGuard struct {
	acquired bool
	deleted  []string
}

func (s *stubGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.acquired, nil
}

func (s *stubGuard) GuardKey(scope string, parts ...string) string {
	return scope
}

func (s *stubGuard) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}
