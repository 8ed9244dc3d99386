package auth

import "context"

type contextKey string

const userIDContextKey contextKey = "fitlog-user-id"

// ContextWithUserID stores the authenticated user id in the request context.
func ContextWithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int)
	return userID, ok
}
