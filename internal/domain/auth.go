package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка RS256 токена оркестратора.
// Scopes перечисляют операции ядра, доступные держателю
// (например, "ops.invoke": true, "ops.escalate": true).
type CustomClaims struct {
	ClientID string          `json:"client_id"`
	Scopes   map[string]bool `json:"scopes"`
	jwt.RegisteredClaims
}

// TokenRequest — обмен client_id + секрета на токен
type TokenRequest struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// APIClient — клиент, объявленный в конфиге (оркестратор, тестовый стенд).
// Секрет храним только как bcrypt-хэш.
type APIClient struct {
	ID         string          `mapstructure:"id" json:"id"`
	SecretHash string          `mapstructure:"secret_hash" json:"-"`
	Scopes     map[string]bool `mapstructure:"scopes" json:"scopes"`
}
