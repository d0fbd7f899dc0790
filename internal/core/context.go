package core

import "context"

type contextKey string

const (
	ctxKeyInvocationID contextKey = "invocation_id"
	ctxKeyOrigin       contextKey = "origin"
)

// ContextWithInvocationID tags ctx with the id of the current invocation.
func ContextWithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyInvocationID, id)
}

// InvocationIDFromContext extracts the invocation id from ctx.
func InvocationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyInvocationID).(string); ok {
		return v
	}
	return ""
}

// ContextWithOrigin tags ctx with the origin being processed.
func ContextWithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin, origin)
}

// OriginFromContext extracts the origin from ctx.
func OriginFromContext(ctx context.Context) Origin {
	if v, ok := ctx.Value(ctxKeyOrigin).(Origin); ok {
		return v
	}
	return ""
}
