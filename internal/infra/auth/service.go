package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

// Service выдаёт JWT токены для клиентов, объявленных в конфигурации.
// Секреты хранятся как bcrypt-хэши, сами токены подписываются RS256.
type Service struct {
	privateKey *rsa.PrivateKey
	clients    map[string]domain.APIClient
	tokenTTL   time.Duration
	logger     *zap.Logger
}

func NewService(privateKey *rsa.PrivateKey, clients []domain.APIClient, tokenTTL time.Duration, logger *zap.Logger) *Service {
	byID := make(map[string]domain.APIClient, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	return &Service{
		privateKey: privateKey,
		clients:    byID,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// IssueToken проверяет client_id/client_secret и возвращает подписанный токен
// со scopes, закреплёнными за клиентом.
func (s *Service) IssueToken(req domain.TokenRequest) (*domain.TokenResponse, error) {
	client, ok := s.clients[req.ClientID]
	if !ok {
		return nil, fmt.Errorf("unknown client")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.Secret)); err != nil {
		s.logger.Warn("client secret mismatch", zap.String("client_id", req.ClientID))
		return nil, fmt.Errorf("invalid credentials")
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := domain.CustomClaims{
		ClientID: client.ID,
		Scopes:   client.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   client.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("token issued",
		zap.String("client_id", client.ID),
		zap.Time("expires_at", expiresAt),
	)

	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}
