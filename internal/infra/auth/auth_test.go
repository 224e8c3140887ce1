package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

func testKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func testClient(t *testing.T, id, secret string, scopes map[string]bool) domain.APIClient {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return domain.APIClient{ID: id, SecretHash: string(hash), Scopes: scopes}
}

func TestIssueAndVerifyToken(t *testing.T) {
	key := testKeyPair(t)
	client := testClient(t, "orchestrator", "s3cret", map[string]bool{"ops.invoke": true, "ops.escalate": true})

	svc := NewService(key, []domain.APIClient{client}, time.Hour, zap.NewNop())

	resp, err := svc.IssueToken(domain.TokenRequest{ClientID: "orchestrator", Secret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	v := NewBaseValidator(&key.PublicKey)
	claims, err := v.VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", claims.ClientID)
	assert.True(t, claims.Scopes["ops.invoke"])
	assert.True(t, claims.Scopes["ops.escalate"])
}

func TestIssueToken_WrongSecret(t *testing.T) {
	key := testKeyPair(t)
	client := testClient(t, "orchestrator", "s3cret", nil)
	svc := NewService(key, []domain.APIClient{client}, time.Hour, zap.NewNop())

	_, err := svc.IssueToken(domain.TokenRequest{ClientID: "orchestrator", Secret: "wrong"})
	assert.Error(t, err)
}

func TestIssueToken_UnknownClient(t *testing.T) {
	svc := NewService(testKeyPair(t), nil, time.Hour, zap.NewNop())

	_, err := svc.IssueToken(domain.TokenRequest{ClientID: "ghost", Secret: "any"})
	assert.Error(t, err)
}

func TestVerifyToken_WrongKey(t *testing.T) {
	key := testKeyPair(t)
	other := testKeyPair(t)
	client := testClient(t, "orchestrator", "s3cret", nil)
	svc := NewService(key, []domain.APIClient{client}, time.Hour, zap.NewNop())

	resp, err := svc.IssueToken(domain.TokenRequest{ClientID: "orchestrator", Secret: "s3cret"})
	require.NoError(t, err)

	v := NewBaseValidator(&other.PublicKey)
	_, err = v.VerifyToken(resp.AccessToken)
	assert.Error(t, err, "token signed by another key must be rejected")
}

func TestVerifyToken_BearerPrefixStripped(t *testing.T) {
	key := testKeyPair(t)
	client := testClient(t, "orchestrator", "s3cret", nil)
	svc := NewService(key, []domain.APIClient{client}, time.Hour, zap.NewNop())

	resp, err := svc.IssueToken(domain.TokenRequest{ClientID: "orchestrator", Secret: "s3cret"})
	require.NoError(t, err)

	v := NewBaseValidator(&key.PublicKey)
	claims, err := v.VerifyToken("Bearer " + resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", claims.ClientID)
}

func TestMiddleware(t *testing.T) {
	key := testKeyPair(t)
	client := testClient(t, "orchestrator", "s3cret", map[string]bool{"ops.invoke": true})
	svc := NewService(key, []domain.APIClient{client}, time.Hour, zap.NewNop())
	v := NewBaseValidator(&key.PublicKey)

	var reached bool
	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) { reached = true })
	protected := NewMiddleware(v, zap.NewNop())(next)

	// Без токена — 401
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)

	// Мусорный токен — 401
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Валидный токен — пропускает
	resp, err := svc.IssueToken(domain.TokenRequest{ClientID: "orchestrator", Secret: "s3cret"})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}
