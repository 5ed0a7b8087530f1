package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
	"github.com/theluxmining/commerce-backend/pkg/metrics"
	"github.com/theluxmining/commerce-backend/pkg/pagination"
	"github.com/theluxmining/commerce-backend/pkg/types"
)

type cartClearer interface {
	Clear(ctx context.Context, identity types.Identity) (*models.Cart, error)
}

type clearGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	GuardKey(scope string, parts ...string) string
}

// WatchConfig bounds the confirmation poll.
type WatchConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
	ClearTTL     time.Duration
}

func (c WatchConfig) withDefaults() WatchConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ClearTTL <= 0 {
		c.ClearTTL = 24 * time.Hour
	}
	return c
}

// Service reads materialized orders and bridges the gap between a
// succeeded payment and the webhook that writes the order row.
type Service interface {
	AwaitOrder(ctx context.Context, identity types.Identity, paymentIntentID string) (*models.Order, error)
	Get(ctx context.Context, identity types.Identity, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, identity types.Identity, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	repo     Repository
	carts    cartClearer
	guard    clearGuard
	checkout *metrics.CheckoutMetrics
	watch    WatchConfig
}

// NewService builds the order service.
func NewService(repo Repository, carts cartClearer, guard clearGuard, checkout *metrics.CheckoutMetrics, watch WatchConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if guard == nil {
		return nil, fmt.Errorf("clear guard required")
	}
	return &service{
		repo:     repo,
		carts:    carts,
		guard:    guard,
		checkout: checkout,
		watch:    watch.withDefaults(),
	}, nil
}

// AwaitOrder polls for the order materialized from the given intent.
// Webhook delivery usually lands within a second or two; the poll is
// bounded so a lost webhook degrades to "still processing" rather than
// hanging the confirmation page.
func (s *service) AwaitOrder(ctx context.Context, identity types.Identity, paymentIntentID string) (*models.Order, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	var order *models.Order
	backoff := retry.WithMaxRetries(uint64(s.watch.MaxAttempts-1), retry.NewConstant(s.watch.PollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s.checkout.IncWatchPoll()
		found, err := s.repo.FindByIntentAndIdentity(ctx, paymentIntentID, identity)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return retry.RetryableError(err)
			}
			return err
		}
		order = found
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.checkout.IncWatchResult("canceled")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order watch canceled")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.checkout.IncWatchResult("timeout")
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotVisible, "order not visible yet; payment may still be processing").
				WithDetails(map[string]any{"payment_intent_id": paymentIntentID})
		}
		s.checkout.IncWatchResult("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "poll for order")
	}

	s.checkout.IncWatchResult("found")
	s.clearCartOnce(ctx, identity, paymentIntentID)
	return order, nil
}

// clearCartOnce empties the shopper's basket exactly once per intent.
// Reloading the confirmation page must not re-clear a basket the
// shopper has started refilling.
func (s *service) clearCartOnce(ctx context.Context, identity types.Identity, paymentIntentID string) {
	key := s.guard.GuardKey("cart_clear", paymentIntentID)
	acquired, err := s.guard.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.watch.ClearTTL)
	if err != nil || !acquired {
		return
	}
	// A converted cart may already be gone; nothing to clear then.
	_, _ = s.carts.Clear(ctx, identity)
}

func (s *service) Get(ctx context.Context, identity types.Identity, id uuid.UUID) (*models.Order, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	owned := false
	switch {
	case identity.IsAuthenticated():
		owned = order.UserID != nil && *order.UserID == *identity.UserID
	case identity.IsAnonymous():
		owned = order.SessionKey != nil && *order.SessionKey == *identity.SessionKey
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, identity types.Identity, params pagination.Params) ([]models.Order, string, error) {
	if !identity.Valid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	rows, next, err := s.repo.ListForIdentity(ctx, identity, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}
