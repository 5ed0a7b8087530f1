package middleware

import (
	"context"

	"github.com/theluxmining/commerce-backend/pkg/types"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the shopper identity resolved by the
// Identity middleware, or a zero value when none was attached.
func IdentityFromContext(ctx context.Context) types.Identity {
	if ctx == nil {
		return types.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(types.Identity); ok {
		return v
	}
	return types.Identity{}
}

// WithIdentity injects the shopper identity into the context.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
