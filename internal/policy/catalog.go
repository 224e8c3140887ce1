package policy

import (
	"fmt"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"go.uber.org/zap"
)

// Catalog — in-memory держатель каталога политик. Это Hot Path эвалуаторов:
// после Validate() на старте обращения идут только к памяти, без локов —
// каталог неизменяем на всем времени жизни процесса.
type Catalog struct {
	kb     *domain.PolicyCatalog
	logger *zap.Logger
}

func NewCatalog(kb *domain.PolicyCatalog, logger *zap.Logger) *Catalog {
	return &Catalog{kb: kb, logger: logger.Named("catalog")}
}

// Version каталога — уходит в source-тег ретривера и в аудит
func (c *Catalog) Version() string { return c.kb.Version }

// Thresholds программы мониторинга (три восходящих порога)
func (c *Catalog) Thresholds() domain.MonitoringProgram { return c.kb.MonitoringProgram }

// Escalation — одобренные каналы эскалаций
func (c *Catalog) Escalation() domain.EscalationMeta { return c.kb.Escalation }

// Validate проверяет каталог перед стартом. Ошибка здесь фатальна:
// несмежные полосы молча misclassify'ят транзакции, поэтому fail fast.
func (c *Catalog) Validate() error {
	b := c.kb.FraudRiskBands
	if b.Low.MaxExclusive <= b.Low.MinInclusive ||
		b.Medium.MaxExclusive <= b.Medium.MinInclusive ||
		b.High.MaxExclusive <= b.High.MinInclusive {
		return fmt.Errorf("catalog: risk band with non-positive width")
	}
	if b.Low.MaxExclusive != b.Medium.MinInclusive {
		return fmt.Errorf("catalog: gap/overlap between low and medium bands (%v != %v)",
			b.Low.MaxExclusive, b.Medium.MinInclusive)
	}
	if b.Medium.MaxExclusive != b.High.MinInclusive {
		return fmt.Errorf("catalog: gap/overlap between medium and high bands (%v != %v)",
			b.Medium.MaxExclusive, b.High.MinInclusive)
	}

	mp := c.kb.MonitoringProgram
	if !(mp.EarlyWarningThreshold < mp.ApproachingThreshold &&
		mp.ApproachingThreshold < mp.MonitoringThreshold) {
		return fmt.Errorf("catalog: monitoring thresholds must be strictly ascending (%v, %v, %v)",
			mp.EarlyWarningThreshold, mp.ApproachingThreshold, mp.MonitoringThreshold)
	}

	if c.kb.Escalation.OpsChannel == "" || c.kb.Escalation.RiskChannel == "" {
		return fmt.Errorf("catalog: both escalation channels must be configured")
	}

	c.logger.Info("policy catalog validated", zap.String("version", c.kb.Version))
	return nil
}

// BandFor классифицирует risk_score по таблице полос.
// Low: score < low.max_exclusive; Medium: [min, max); иначе High —
// граничное значение уходит в более строгую полосу.
func (c *Catalog) BandFor(score float64) domain.RiskBand {
	b := c.kb.FraudRiskBands
	if score < b.Low.MaxExclusive {
		return domain.BandLow
	}
	if score >= b.Medium.MinInclusive && score < b.Medium.MaxExclusive {
		return domain.BandMedium
	}
	return domain.BandHigh
}

// VerdictFor проверяет ratio против порогов в порядке убывания серьезности:
// первый сработавший (включительная нижняя граница) и есть вердикт.
// Так ratio, покрывающий несколько порогов, всегда дает самый строгий.
func (c *Catalog) VerdictFor(ratio float64) domain.MonitoringVerdict {
	mp := c.kb.MonitoringProgram
	switch {
	case ratio >= mp.MonitoringThreshold:
		return domain.VerdictMonitoring
	case ratio >= mp.ApproachingThreshold:
		return domain.VerdictApproaching
	case ratio >= mp.EarlyWarningThreshold:
		return domain.VerdictEarlyWarning
	default:
		return domain.VerdictHealthy
	}
}

// GuidanceFor возвращает рекомендации по коду отказа (nil, если кода нет в таблице)
func (c *Catalog) GuidanceFor(declineCode string) *domain.DeclineGuidance {
	if g, ok := c.kb.DeclineCodeGuidance[declineCode]; ok {
		return &g
	}
	return nil
}

// SnippetByID — точный поиск сниппета (для категорий ремедиации)
func (c *Catalog) SnippetByID(id string) *domain.KBSnippet {
	for i := range c.kb.KBSnippets {
		if c.kb.KBSnippets[i].ID == id {
			return &c.kb.KBSnippets[i]
		}
	}
	return nil
}

// Snippets — весь набор в каталожном порядке (для ретривера)
func (c *Catalog) Snippets() []domain.KBSnippet { return c.kb.KBSnippets }
