package cart

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
	"github.com/theluxmining/commerce-backend/pkg/types"
)

// migrationGuardTTL bounds how long a session->user migration stays
// deduplicated; long enough to absorb double-submits on login.
const migrationGuardTTL = 10 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type migrationGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	GuardKey(scope string, parts ...string) string
	Del(ctx context.Context, keys ...string) error
}

// Service exposes the cart lifecycle: lazy creation, item mutations,
// and session-to-user identity migration.
type Service interface {
	GetActiveCart(ctx context.Context, identity types.Identity) (*models.Cart, error)
	AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, identity types.Identity, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, identity types.Identity) (*models.Cart, error)
	MigrateIdentity(ctx context.Context, sessionKey string, userID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	products productLoader
	guard    migrationGuard
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, productRepo productLoader, guard migrationGuard) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("migration guard required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: productRepo,
		guard:    guard,
	}, nil
}

// GetActiveCart returns the caller's active cart, creating an empty one
// on first touch.
func (s *service) GetActiveCart(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	existing, err := s.findActive(ctx, identity)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{
		UserID:     identity.UserID,
		SessionKey: identity.SessionKey,
		Status:     enums.CartStatusActive,
		Currency:   "USD",
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return fresh, nil
}

// AddItem appends a product line or merges into an existing one. Unit
// price is snapshotted from the catalog at add time.
func (s *service) AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.GetActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.loadSellableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	requested := quantity
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			requested += cart.Items[i].Quantity
		}
	}
	if exceedsStock(product, requested) {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": productID.String(),
				"available":  product.StockQuantity,
				"requested":  requested,
			})
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = requested
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, models.CartItem{
			CartID:         cart.ID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductSKU:     product.SKU,
			Quantity:       quantity,
			UnitPriceCents: product.UnitPriceCents,
			WeightGrams:    product.WeightGrams,
		})
	}

	invalidateShipping(cart)
	recalculate(cart)

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// UpdateQuantity sets the line quantity for a product already in the
// cart. Quantities below 1 are rejected; removal is its own operation.
func (s *service) UpdateQuantity(ctx context.Context, identity types.Identity, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.requireActive(ctx, identity)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}

	product, err := s.loadSellableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if exceedsStock(product, quantity) {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": productID.String(),
				"available":  product.StockQuantity,
				"requested":  quantity,
			})
	}

	cart.Items[idx].Quantity = quantity
	invalidateShipping(cart)
	recalculate(cart)

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// RemoveItem drops a product line from the cart.
func (s *service) RemoveItem(ctx context.Context, identity types.Identity, productID uuid.UUID) (*models.Cart, error) {
	cart, err := s.requireActive(ctx, identity)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
	}

	if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	invalidateShipping(cart)
	recalculate(cart)

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// Clear empties the cart and resets every derived field.
func (s *service) Clear(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	cart, err := s.requireActive(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}

	cart.Items = nil
	cart.ShippingAddress = nil
	invalidateShipping(cart)
	recalculate(cart)

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// MigrateIdentity folds the anonymous session cart into the user's
// cart after login. Quantities merge additively; the user cart's price
// snapshot wins on conflicting lines. A redis guard makes concurrent
// double-submits collapse to one migration.
func (s *service) MigrateIdentity(ctx context.Context, sessionKey string, userID uuid.UUID) (*models.Cart, error) {
	if sessionKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	guardKey := s.guard.GuardKey("cart_migration", sessionKey, userID.String())
	acquired, err := s.guard.SetNX(ctx, guardKey, time.Now().UTC().Format(time.RFC3339), migrationGuardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire migration guard")
	}
	if !acquired {
		// A concurrent migration already ran; return the user's cart.
		return s.GetActiveCart(ctx, types.Identity{UserID: &userID})
	}

	anonCart, err := s.repo.FindActiveBySession(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Nothing to migrate; login with no anonymous basket.
			return s.GetActiveCart(ctx, types.Identity{UserID: &userID})
		}
		_ = s.guard.Del(ctx, guardKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
	}

	var mergedID uuid.UUID
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		userCart, err := txRepo.FindActiveByUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			// No user cart yet: adopt the anonymous one wholesale.
			anonCart.UserID = &userID
			anonCart.SessionKey = nil
			invalidateShipping(anonCart)
			recalculate(anonCart)
			if err := txRepo.Save(ctx, anonCart); err != nil {
				return err
			}
			mergedID = anonCart.ID
			return nil
		}

		for _, line := range anonCart.Items {
			found := false
			for i := range userCart.Items {
				if userCart.Items[i].ProductID == line.ProductID {
					userCart.Items[i].Quantity += line.Quantity
					found = true
					break
				}
			}
			if !found {
				userCart.Items = append(userCart.Items, models.CartItem{
					CartID:         userCart.ID,
					ProductID:      line.ProductID,
					ProductName:    line.ProductName,
					ProductSKU:     line.ProductSKU,
					Quantity:       line.Quantity,
					UnitPriceCents: line.UnitPriceCents,
					WeightGrams:    line.WeightGrams,
				})
			}
		}

		invalidateShipping(userCart)
		recalculate(userCart)
		if err := txRepo.Save(ctx, userCart); err != nil {
			return err
		}

		if err := txRepo.DeleteItems(ctx, anonCart.ID); err != nil {
			return err
		}
		now := time.Now().UTC()
		anonCart.Items = nil
		anonCart.Status = enums.CartStatusConverted
		anonCart.ConvertedAt = &now
		invalidateShipping(anonCart)
		recalculate(anonCart)
		if err := txRepo.Save(ctx, anonCart); err != nil {
			return err
		}

		mergedID = userCart.ID
		return nil
	})
	if txErr != nil {
		_ = s.guard.Del(ctx, guardKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "migrate cart")
	}

	merged, err := s.repo.GetByID(ctx, mergedID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload merged cart")
	}
	return merged, nil
}

func (s *service) findActive(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.IsAuthenticated() {
		return s.repo.FindActiveByUser(ctx, *identity.UserID)
	}
	return s.repo.FindActiveBySession(ctx, *identity.SessionKey)
}

// requireActive loads the caller's cart without creating one.
func (s *service) requireActive(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}
	cart, err := s.findActive(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadSellableProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

// exceedsStock applies the stock ceiling only when the product tracks
// inventory and does not allow backorders.
func exceedsStock(product *models.Product, requested int) bool {
	if !product.TrackInventory || product.AllowBackorder {
		return false
	}
	return requested > product.StockQuantity
}
