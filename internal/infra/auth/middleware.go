package auth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/engine"
)

// TokenValidator — контракт для проверки токенов (объявляем интерфейс на стороне потребителя)
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// NewMiddleware возвращает HTTP-middleware, которое проверяет Bearer токен
// и прокидывает scopes клиента в контекст запроса.
func NewMiddleware(validator TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing authorization header", zap.String("path", r.URL.Path))
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := validator.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("token verification failed",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := engine.WithScopes(r.Context(), claims.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
