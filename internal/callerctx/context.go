// Package callerctx carries the pre-authenticated caller identity through
// request context. The ledger treats identity as an opaque string; the
// fronting auth layer vouches for it.
package callerctx

import "context"

type callerKey struct{}

func WithCaller(ctx context.Context, caller string) context.Context {
	if caller == "" {
		return ctx
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey{}).(string)
	return caller, ok && caller != ""
}
