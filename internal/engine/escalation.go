package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"go.uber.org/zap"
)

// Контрактные имена триггеров эскалации (уходят в аудит и ответ)
const (
	TriggerMonitoringVerdict  = "monitoring_verdict"
	TriggerDeclineSpike       = "decline_spike"
	TriggerHighRiskWeakAuth   = "high_risk_weak_auth"
	TriggerConflictingSignals = "conflicting_signals"
)

// Router — роутер эскалаций: принимает собранные факты и выносит решение
// (канал + текст + обязательность), затем исполняет доставку через
// DeliveryWrapper. Самый ответственный компонент ядра: неверное решение
// здесь — комплаенс-инцидент, поэтому логика прозрачно табличная.
type Router struct {
	delivery *DeliveryWrapper
	channels domain.EscalationMeta
	logger   *zap.Logger
}

func NewRouter(delivery *DeliveryWrapper, channels domain.EscalationMeta, logger *zap.Logger) *Router {
	return &Router{
		delivery: delivery,
		channels: channels,
		logger:   logger.Named("escalation"),
	}
}

// RouteResult — итог route_escalation: решение + фактическая доставка
type RouteResult struct {
	Decision *domain.EscalationDecision `json:"decision"`
	Delivery *domain.DeliveryResult     `json:"delivery,omitempty"`
}

// Decide выносит решение по фактам. Достаточно ЛЮБОГО условия:
//   - вердикт мониторинга EarlyWarning и строже;
//   - спайк отказов (флаг выставляет вызывающая сторона);
//   - (полоса High ИЛИ score >= 0.80) И слабая аутентификация;
//   - конфликтующие сигналы систем.
//
// Маршрутизация каналов взаимоисключающая, приоритет фиксирован:
// фрод-канал только для high-risk + weak-auth, остальное — операционный.
func (r *Router) Decide(f *domain.EscalationFacts) *domain.EscalationDecision {
	d := &domain.EscalationDecision{}

	highRisk := f.Band == domain.BandHigh || f.RiskScore >= 0.80
	weak := weakAuthSignals(f)

	if f.Verdict.AtLeast(domain.VerdictEarlyWarning) {
		d.Triggers = append(d.Triggers, TriggerMonitoringVerdict)
	}
	if f.DeclineSpike {
		d.Triggers = append(d.Triggers, TriggerDeclineSpike)
	}
	if highRisk && weak {
		d.Triggers = append(d.Triggers, TriggerHighRiskWeakAuth)
	}
	if f.ConflictingSignals {
		d.Triggers = append(d.Triggers, TriggerConflictingSignals)
	}

	if len(d.Triggers) == 0 {
		return d // required = false, канал не выбираем
	}

	d.Required = true

	// Приоритет 1: фрод/высокий риск
	if highRisk && weak {
		d.Channel = r.channels.RiskChannel
	} else {
		// Приоритет 2: операционные/сетевые паттерны (спайки, код 91, Do Not Honor)
		d.Channel = r.channels.OpsChannel
	}

	d.Message = buildMessage(f, d.Triggers)
	return d
}

// Route — полный цикл: решение + обязательная попытка доставки.
// Формирование текста эскалации без попытки отправки — нарушение контракта,
// поэтому доставку исполняет сам роутер, а не вызывающая сторона.
// При двойном провале факты расследования не теряются: RouteResult
// возвращается вместе с ErrDeliveryFailed.
func (r *Router) Route(ctx context.Context, f *domain.EscalationFacts, threadRef string) (*RouteResult, error) {
	decision := r.Decide(f)
	res := &RouteResult{Decision: decision}

	if !decision.Required {
		r.logger.Debug("no escalation required", zap.String("merchant_id", f.MerchantID))
		return res, nil
	}

	delivery, err := r.delivery.Deliver(ctx, decision.Channel, decision.Message, threadRef)
	res.Delivery = delivery
	if err != nil {
		return res, err
	}

	r.logger.Info("escalation delivered",
		zap.String("merchant_id", f.MerchantID),
		zap.String("channel", delivery.Channel),
		zap.Bool("retried", delivery.Retried),
		zap.Strings("triggers", decision.Triggers),
	)
	return res, nil
}

// weakAuthSignals — слабая аутентификация в терминах триггеров эскалации:
// 3DS FAILED/NOT_ENROLLED, либо AVS/CVV в {N, U}
func weakAuthSignals(f *domain.EscalationFacts) bool {
	if f.ThreeDSResult == "FAILED" || f.ThreeDSResult == "NOT_ENROLLED" {
		return true
	}
	if f.AVSResult == "N" || f.AVSResult == "U" {
		return true
	}
	if f.CVVResult == "N" || f.CVVResult == "U" {
		return true
	}
	return false
}

// buildMessage собирает короткое структурированное сообщение.
// Карточных данных в фактах нет by contract: только id, вердикты и сигналы.
func buildMessage(f *domain.EscalationFacts, triggers []string) string {
	var b strings.Builder

	b.WriteString("ESCALATION | merchant " + f.MerchantID + "\n")
	if f.TransactionID != "" {
		b.WriteString(fmt.Sprintf("txn %s | band %s | risk_score %.2f\n", f.TransactionID, f.Band, f.RiskScore))
	}
	if f.Verdict != "" {
		b.WriteString("monitoring verdict: " + string(f.Verdict) + "\n")
	}
	if f.DeclineCode != "" {
		b.WriteString("decline code: " + f.DeclineCode + "\n")
	}
	for _, line := range f.Summary {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("triggers: " + strings.Join(triggers, ", "))

	return b.String()
}
