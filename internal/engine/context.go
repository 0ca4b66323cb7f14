package engine

import "context"

type contextKey struct{ name string }

var userIDKey = contextKey{"user-id"}

// WithUserID attaches the authenticated caller's identity to the context so
// executions are recorded against it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the caller identity set by WithUserID, or "" when the
// request was unauthenticated (single-user CLI mode).
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
