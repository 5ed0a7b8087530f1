package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	"github.com/theluxmining/commerce-backend/pkg/enums"
	"github.com/theluxmining/commerce-backend/pkg/pagination"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  user_id TEXT,
  session_key TEXT,
  cart_id TEXT NOT NULL,
  payment_intent_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'paid',
  currency TEXT NOT NULL DEFAULT 'USD',
  shipping_address TEXT,
  shipping_line TEXT,
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  product_sku TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  line_subtotal_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func createTestOrder(t *testing.T, db *gorm.DB, identity types.Identity, intentID string, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		Number:          fmt.Sprintf("LUX-20260815-%s", uuid.NewString()[:4]),
		UserID:          identity.UserID,
		SessionKey:      identity.SessionKey,
		CartID:          uuid.New(),
		PaymentIntentID: intentID,
		Status:          enums.OrderStatusPaid,
		Currency:        "USD",
		SubtotalCents:   5000,
		ShippingCents:   500,
		TaxCents:        210,
		TotalCents:      5710,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	order.Items = []models.OrderItem{{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		ProductName:       "Antminer S19",
		ProductSKU:        "ASIC-S19",
		Quantity:          2,
		UnitPriceCents:    2500,
		LineSubtotalCents: 5000,
		CreatedAt:         created,
	}}
	require.NoError(t, db.Create(order).Error)
	return order
}

func userIdentity(id uuid.UUID) types.Identity {
	return types.Identity{UserID: &id}
}

func sessionIdentity(key string) types.Identity {
	return types.Identity{SessionKey: &key}
}

func TestRepositoryListForIdentity_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	identity := userIdentity(uuid.New())
	now := time.Now().UTC()
	older := createTestOrder(t, db, identity, "pi_page_"+uuid.NewString(), now.Add(-time.Hour))
	newer := createTestOrder(t, db, identity, "pi_page_"+uuid.NewString(), now)

	rows, next, err := repo.ListForIdentity(context.Background(), identity, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newer.PaymentIntentID, rows[0].PaymentIntentID)
	require.Len(t, rows[0].Items, 1)
	assert.NotEmpty(t, next)

	second, next, err := repo.ListForIdentity(context.Background(), identity, pagination.Params{Limit: 1, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.PaymentIntentID, second[0].PaymentIntentID)
	assert.Empty(t, next)
}

func TestRepositoryListForIdentity_scopedToCaller(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	mine := userIdentity(uuid.New())
	theirs := userIdentity(uuid.New())
	now := time.Now().UTC()
	createTestOrder(t, db, mine, "pi_scope_"+uuid.NewString(), now)
	createTestOrder(t, db, theirs, "pi_scope_"+uuid.NewString(), now)

	rows, next, err := repo.ListForIdentity(context.Background(), mine, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, *mine.UserID, *rows[0].UserID)
	assert.Empty(t, next)
}

func TestRepositoryFindByIntentAndIdentity(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	owner := userIdentity(uuid.New())
	intentID := "pi_find_" + uuid.NewString()
	created := createTestOrder(t, db, owner, intentID, time.Now().UTC())

	found, err := repo.FindByIntentAndIdentity(context.Background(), intentID, owner)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "ASIC-S19", found.Items[0].ProductSKU)

	_, err = repo.FindByIntentAndIdentity(context.Background(), intentID, userIdentity(uuid.New()))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryFindByIntentAndIdentity_sessionScope(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	owner := sessionIdentity("sess_" + uuid.NewString())
	intentID := "pi_sess_" + uuid.NewString()
	createTestOrder(t, db, owner, intentID, time.Now().UTC())

	found, err := repo.FindByIntentAndIdentity(context.Background(), intentID, owner)
	require.NoError(t, err)
	assert.Equal(t, *owner.SessionKey, *found.SessionKey)

	_, err = repo.FindByIntentAndIdentity(context.Background(), intentID, sessionIdentity("sess_other"))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
