package auth

import (
	"context"
	"net/http"
	"strings"

	"smart-tasks-backend/internal/analytics"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/httpapi"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

type Middleware struct {
	tokens Tokens
}

func NewMiddleware(tokens Tokens) Middleware {
	return Middleware{tokens: tokens}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			httpapi.Error(w, r, apperr.ErrUnauthorized)
			return
		}

		userID, err := m.tokens.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			httpapi.Error(w, r, apperr.ErrUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = analytics.WithUserID(ctx, userID)

		next(w, r.WithContext(ctx))
	}
}

func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uint, bool) {
	uid, ok := ctx.Value(userIDKey).(uint)
	return uid, ok && uid != 0
}

// Caller is the handler-side helper: it returns the authenticated user id or
// writes a 401 and returns false.
func Caller(w http.ResponseWriter, r *http.Request) (uint, bool) {
	uid, ok := UserIDFromContext(r.Context())
	if !ok {
		httpapi.Error(w, r, apperr.ErrUnauthorized)
		return 0, false
	}
	return uid, true
}
