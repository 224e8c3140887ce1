package compliance

import (
	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
	"go.uber.org/zap"
)

// Категории ремедиации = ID сниппетов KB. Текст сниппета в отчет не
// вкладывается — за ним вызывающая сторона идет в ретривер.
const (
	SnippetChargebackRemediation = "KB-CHARGEBACK-REMEDIATION"
	SnippetThreeDSStepUp         = "KB-3DS-STEPUP"
)

// Report — вердикт мониторинга по мерчанту
type Report struct {
	MerchantID      string                   `json:"merchant_id"`
	ChargebackRatio float64                  `json:"chargeback_ratio"`
	Thresholds      domain.MonitoringProgram `json:"thresholds"`
	Verdict         domain.MonitoringVerdict `json:"verdict"`

	// Выбранная категория сниппета (демо-эвристика по MCC/сегменту)
	SnippetCategory string `json:"snippet_category"`
}

type Evaluator struct {
	store  *store.RecordStore
	cat    *policy.Catalog
	logger *zap.Logger
}

func NewEvaluator(s *store.RecordStore, cat *policy.Catalog, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: s, cat: cat, logger: logger.Named("compliance")}
}

// Evaluate резолвит мерчанта и классифицирует его chargeback_ratio.
// Пороги проверяются от строгого к мягкому (первое совпадение побеждает),
// поэтому ratio выше нескольких порогов всегда дает самый строгий вердикт.
func (e *Evaluator) Evaluate(merchantID string) (*Report, error) {
	m, err := e.store.GetMerchant(merchantID)
	if err != nil {
		return nil, err
	}

	verdict := e.cat.VerdictFor(m.ChargebackRatio)

	// Демо-эвристика выбора плейбука, приоритет фиксирован:
	// travel (4722) -> chargeback remediation;
	// High-сегмент или цифровые товары (5815/5816) -> 3DS step-up;
	// иначе дефолтный chargeback remediation.
	category := SnippetChargebackRemediation
	if m.MCC != "4722" && (m.RiskSegment == "High" || m.MCC == "5815" || m.MCC == "5816") {
		category = SnippetThreeDSStepUp
	}

	e.logger.Debug("merchant compliance evaluated",
		zap.String("merchant_id", m.MerchantID),
		zap.Float64("ratio", m.ChargebackRatio),
		zap.String("verdict", string(verdict)),
	)

	return &Report{
		MerchantID:      m.MerchantID,
		ChargebackRatio: m.ChargebackRatio,
		Thresholds:      e.cat.Thresholds(),
		Verdict:         verdict,
		SnippetCategory: category,
	}, nil
}
