package policy

import (
	"strings"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"go.uber.org/zap"
)

// Лимит выдачи: первые N совпадений в каталожном порядке,
// никакого ранжирования по релевантности
const maxHits = 5

// SearchResult — ответ ретривера. Пустой список — валидный успешный исход,
// не ошибка.
type SearchResult struct {
	Results     []domain.KBSnippet `json:"results"`
	Source      string             `json:"source"`
	ContextUsed map[string]string  `json:"context_used"`
}

// Retriever — полнотекстовый (substring) поиск по сниппетам внутреннего KB
type Retriever struct {
	cat    *Catalog
	logger *zap.Logger
}

func NewRetriever(cat *Catalog, logger *zap.Logger) *Retriever {
	return &Retriever{cat: cat, logger: logger.Named("retriever")}
}

// Search сопоставляет запрос со сниппетами без учета регистра.
// Сниппет подходит, если весь (обрезанный, lower-cased) запрос — подстрока
// его "стога" (id + title + tags + content), ЛИБО любой отдельный токен
// запроса — подстрока того же стога.
func (r *Retriever) Search(query string, ctx map[string]string) *SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	tokens := strings.Fields(q)

	hits := make([]domain.KBSnippet, 0, maxHits)
	for _, snip := range r.cat.Snippets() {
		if len(hits) >= maxHits {
			break
		}
		hay := haystack(&snip)
		// Пустой запрос — подстрока любого стога: отдаем первые N по каталогу
		if strings.Contains(hay, q) {
			hits = append(hits, snip)
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(hay, tok) {
				hits = append(hits, snip)
				break
			}
		}
	}

	if ctx == nil {
		ctx = map[string]string{}
	}

	r.logger.Debug("kb search", zap.String("query", q), zap.Int("hits", len(hits)))

	return &SearchResult{
		Results:     hits,
		Source:      "internal-demo-kb:" + r.cat.Version(),
		ContextUsed: ctx,
	}
}

func haystack(s *domain.KBSnippet) string {
	parts := []string{s.ID, s.Title, strings.Join(s.Tags, " "), strings.Join(s.Content, " ")}
	return strings.ToLower(strings.Join(parts, " "))
}
