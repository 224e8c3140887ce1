package risk

import (
	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
	"go.uber.org/zap"
)

// Assessment — детерминированный вердикт по одной транзакции.
// Чистая функция каталога и записи: без рандома, полностью воспроизводимо.
type Assessment struct {
	Transaction *domain.Transaction `json:"transaction"`
	Band        domain.RiskBand     `json:"risk_band"`
	Signals     []string            `json:"signals"`
	NextActions []string            `json:"next_actions"`
}

type Evaluator struct {
	store  *store.RecordStore
	cat    *policy.Catalog
	logger *zap.Logger
}

func NewEvaluator(s *store.RecordStore, cat *policy.Catalog, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: s, cat: cat, logger: logger.Named("risk")}
}

// Evaluate резолвит транзакцию и выводит полосу риска, сигналы и действия.
// Порядок сигналов фиксирован — каждый проверяется независимо, но
// детерминированная последовательность нужна аудиту и тестам.
func (e *Evaluator) Evaluate(transactionID string) (*Assessment, error) {
	t, err := e.store.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}

	band := e.cat.BandFor(t.RiskScore)

	var signals []string

	// 1. Отказ с кодом/причиной (фолбэки при пустых полях)
	if t.Status == domain.TxDeclined {
		code := t.DeclineCode
		if code == "" {
			code = "UNKNOWN"
		}
		reason := t.DeclineReason
		if reason == "" {
			reason = "No reason provided"
		}
		signals = append(signals, "Declined: "+code+" ("+reason+")")
	}

	// 2. Слабый/отсутствующий 3DS критичен только для e-commerce
	if t.Channel == "ecom" && (t.ThreeDSResult == "FAILED" || t.ThreeDSResult == "") {
		signals = append(signals, "Weak/absent 3DS signal for e-commerce")
	}

	// 3-4. AVS/CVV: N, U или отсутствие результата
	if weakCheck(t.AVSResult) {
		signals = append(signals, "AVS not strong")
	}
	if weakCheck(t.CVVResult) {
		signals = append(signals, "CVV not strong")
	}

	// 5. Скоринговый порог
	if t.RiskScore >= 0.80 {
		signals = append(signals, "High risk score")
	}

	var actions []string
	if band == domain.BandHigh {
		actions = append(actions, "Recommend step-up authentication (3DS) and additional screening for similar transactions.")
	}
	if t.Status == domain.TxDeclined && t.DeclineCode != "" {
		if g := e.cat.GuidanceFor(t.DeclineCode); g != nil {
			actions = append(actions, g.GeneralGuidance...)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "No immediate action required based on current signals.")
	}

	e.logger.Debug("transaction evaluated",
		zap.String("transaction_id", t.TransactionID),
		zap.String("band", string(band)),
		zap.Int("signals", len(signals)),
	)

	return &Assessment{
		Transaction: t,
		Band:        band,
		Signals:     signals,
		NextActions: actions,
	}, nil
}

// weakCheck — результат проверки не считается сильным:
// явный негатив (N), недоступность (U) или отсутствие ответа
func weakCheck(result string) bool {
	return result == "N" || result == "U" || result == ""
}
