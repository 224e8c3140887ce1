package risk

import (
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
	"go.uber.org/zap"
)

// Причины выбора репрезентативной транзакции (контрактные теги)
const (
	ReasonDeclinedHighestRisk = "picked_declined_highest_risk"
	ReasonHighestRisk         = "picked_highest_risk"
	ReasonNoTransactions      = "no_transactions"
)

// DefaultWindowHours — окно по умолчанию для расследования
const DefaultWindowHours = 48

// Selection — выбранный якорь расследования + рамки окна
type Selection struct {
	MerchantID    string              `json:"merchant_id"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Chosen        *domain.Transaction `json:"chosen,omitempty"`
	Reason        string              `json:"reason"`
	StartTime     string              `json:"start_time"`
	EndTime       string              `json:"end_time"`
}

// Selector выбирает одну транзакцию из окна для якоря расследования.
// "now" инжектится вызывающей стороной — внутри часов нет, компонент
// детерминирован и тестируем.
type Selector struct {
	store  *store.RecordStore
	logger *zap.Logger
}

func NewSelector(s *store.RecordStore, logger *zap.Logger) *Selector {
	return &Selector{store: s, logger: logger.Named("selector")}
}

// Pick берет все транзакции мерчанта в [now-window, now] и выбирает:
// среди отказанных — максимальный risk_score; если отказов нет —
// максимум по всем. При равных скорах побеждает более свежая:
// кандидаты уже идут по убыванию времени, сравнение строгое.
func (s *Selector) Pick(merchantID string, windowHours int, now time.Time) *Selection {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	start := now.Add(-time.Duration(windowHours) * time.Hour)

	sel := &Selection{
		MerchantID: merchantID,
		StartTime:  start.Format(time.RFC3339),
		EndTime:    now.Format(time.RFC3339),
	}

	txns := s.store.ListTransactions(merchantID, start, now, store.TxFilter{})
	if len(txns) == 0 {
		sel.Reason = ReasonNoTransactions
		return sel
	}

	var declined []*domain.Transaction
	for _, t := range txns {
		if t.Status == domain.TxDeclined {
			declined = append(declined, t)
		}
	}

	pool := txns
	sel.Reason = ReasonHighestRisk
	if len(declined) > 0 {
		pool = declined
		sel.Reason = ReasonDeclinedHighestRisk
	}

	chosen := pool[0]
	for _, t := range pool[1:] {
		if t.RiskScore > chosen.RiskScore {
			chosen = t
		}
	}

	sel.Chosen = chosen
	sel.TransactionID = chosen.TransactionID

	s.logger.Debug("representative transaction picked",
		zap.String("merchant_id", merchantID),
		zap.String("transaction_id", chosen.TransactionID),
		zap.String("reason", sel.Reason),
	)
	return sel
}
