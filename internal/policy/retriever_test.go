package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

func retrieverKB() *domain.PolicyCatalog {
	kb := validKB()
	kb.KBSnippets = []domain.KBSnippet{
		{
			ID:      "KB-CHARGEBACK-REMEDIATION",
			Title:   "Chargeback remediation playbook",
			Tags:    []string{"chargeback", "monitoring"},
			Content: []string{"Open a remediation plan when the ratio enters the early-warning zone."},
		},
		{
			ID:      "KB-3DS-STEPUP",
			Title:   "3DS step-up policy",
			Tags:    []string{"3ds", "authentication", "fraud"},
			Content: []string{"Enable step-up authentication for high risk score e-commerce traffic."},
		},
		{
			ID:      "KB-DECLINE-HANDLING",
			Title:   "Decline code handling basics",
			Tags:    []string{"decline", "codes"},
			Content: []string{"Soft declines may be retried; hard declines must not."},
		},
	}
	return kb
}

func newTestRetriever() *Retriever {
	return NewRetriever(NewCatalog(retrieverKB(), zap.NewNop()), zap.NewNop())
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	r := newTestRetriever()

	res := r.Search("CHARGEBACK", nil)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "KB-CHARGEBACK-REMEDIATION", res.Results[0].ID)
}

func TestSearch_TokenMatch(t *testing.T) {
	r := newTestRetriever()

	// Запрос целиком не совпадает, но токен "3ds" находит сниппет
	res := r.Search("what is our 3ds posture", nil)
	ids := make([]string, 0, len(res.Results))
	for _, s := range res.Results {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "KB-3DS-STEPUP")
}

func TestSearch_NoMatchIsSuccess(t *testing.T) {
	r := newTestRetriever()

	res := r.Search("qqqqzzzz", nil)
	assert.Empty(t, res.Results, "no-match is an empty result, not an error")
	assert.Equal(t, "internal-demo-kb:test-1", res.Source)
}

func TestSearch_EmptyQueryReturnsCatalogOrder(t *testing.T) {
	r := newTestRetriever()

	// Пустая строка — подстрока любого стога: первые сниппеты в каталожном порядке
	for _, q := range []string{"", "   "} {
		res := r.Search(q, nil)
		require.Len(t, res.Results, 3)
		assert.Equal(t, "KB-CHARGEBACK-REMEDIATION", res.Results[0].ID)
		assert.Equal(t, "KB-3DS-STEPUP", res.Results[1].ID)
		assert.Equal(t, "KB-DECLINE-HANDLING", res.Results[2].ID)
	}
}

func TestSearch_SourceAndContext(t *testing.T) {
	r := newTestRetriever()

	ctx := map[string]string{"merchant_id": "MER-1001"}
	res := r.Search("decline", ctx)
	assert.Equal(t, "internal-demo-kb:test-1", res.Source)
	assert.Equal(t, ctx, res.ContextUsed)

	// nil-контекст нормализуется в пустую мапу
	res2 := r.Search("decline", nil)
	assert.NotNil(t, res2.ContextUsed)
}

func TestSearch_LimitsHits(t *testing.T) {
	kb := retrieverKB()
	kb.KBSnippets = nil
	for i := 0; i < 8; i++ {
		kb.KBSnippets = append(kb.KBSnippets, domain.KBSnippet{
			ID:    "KB-COMMON-" + string(rune('A'+i)),
			Title: "Common policy note",
			Tags:  []string{"common"},
		})
	}
	r := NewRetriever(NewCatalog(kb, zap.NewNop()), zap.NewNop())

	res := r.Search("common", nil)
	assert.Len(t, res.Results, 5, "результат ограничен первыми пятью совпадениями")
}
