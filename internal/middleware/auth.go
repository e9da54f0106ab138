package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gthanmon/gemini-account-manager/internal/audit"
	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

type contextKey string

const CallerContextKey contextKey = "caller"

func GetCaller(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(model.Caller)
	return caller, ok
}

func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

type TokenParser interface {
	Parse(token string) (model.Caller, error)
}

type AuthMiddleware struct {
	parser TokenParser
}

func NewAuthMiddleware(parser TokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		caller, err := m.parser.Parse(token)
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("auth middleware: invalid token attempt")
			audit.Log(r.Context(), audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"path": r.URL.Path, "remote_addr": r.RemoteAddr},
			})
			writeError(w, apperrors.Unauthorized("Invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// extractToken prefers the Authorization header. EventSource clients cannot
// set headers, so the query parameter is accepted as a fallback.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
