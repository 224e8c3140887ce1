package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/payops-agent-gateway/internal/audit"
	"github.com/xela07ax/payops-agent-gateway/internal/compliance"
	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/risk"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
	"go.uber.org/zap"
)

// OpKind — закрытый набор операций ядра. Набор перечислим и статически
// проверяем: никакого динамического диспатча duck-typed коллаблов.
type OpKind string

const (
	OpListTransactions     OpKind = "list_transactions"
	OpListRecent           OpKind = "list_transactions_recent"
	OpSelectRepresentative OpKind = "select_representative"
	OpEvaluateRisk         OpKind = "evaluate_risk"
	OpEvaluateCompliance   OpKind = "evaluate_compliance"
	OpRetrievePolicy       OpKind = "retrieve_policy"
	OpRouteEscalation      OpKind = "route_escalation"
)

// Требуемый скоуп токена по операциям. Эскалация выделена отдельно:
// право читать факты не дает права дергать внешний мессенджер.
var opScopes = map[OpKind]string{
	OpListTransactions:     "ops.invoke",
	OpListRecent:           "ops.invoke",
	OpSelectRepresentative: "ops.invoke",
	OpEvaluateRisk:         "ops.invoke",
	OpEvaluateCompliance:   "ops.invoke",
	OpRetrievePolicy:       "ops.invoke",
	OpRouteEscalation:      "ops.escalate",
}

// Аргументы операций (JSON-контракт оркестратора)

type ListArgs struct {
	MerchantID  string `json:"merchant_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
}

type ListRecentArgs struct {
	MerchantID  string `json:"merchant_id"`
	WindowHours int    `json:"window_hours,omitempty"` // 0 = дефолтные 48ч
	Status      string `json:"status,omitempty"`
}

type SelectArgs struct {
	MerchantID  string `json:"merchant_id"`
	WindowHours int    `json:"window_hours,omitempty"`
}

type EvaluateRiskArgs struct {
	TransactionID string `json:"transaction_id"`
}

type EvaluateComplianceArgs struct {
	MerchantID string `json:"merchant_id"`
}

type RetrieveArgs struct {
	Query   string            `json:"query"`
	Context map[string]string `json:"context,omitempty"`
}

type RouteArgs struct {
	Facts     domain.EscalationFacts `json:"facts"`
	ThreadRef string                 `json:"thread_ref,omitempty"`
}

// ListResult — ответ оконных выборок
type ListResult struct {
	MerchantID   string                `json:"merchant_id"`
	StartTime    string                `json:"start_time,omitempty"`
	EndTime      string                `json:"end_time,omitempty"`
	Count        int                   `json:"count"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// Registry — точка входа оркестратора в ядро. Каждая операция проходит
// единый конвейер: скоуп токена -> стейт-машина порядка -> исполнение ->
// аудит + метрики. Сами эвалуаторы чистые, весь side-effect тут.
type Registry struct {
	store     *store.RecordStore
	riskEval  *risk.Evaluator
	selector  *risk.Selector
	compEval  *compliance.Evaluator
	retriever *policy.Retriever
	router    *Router

	tracker *Tracker
	trail   audit.Recorder
	metrics *Metrics
	logger  *zap.Logger

	// Инжектируемые часы: операции с окном "от сейчас" детерминированы в тестах
	now func() time.Time
}

func NewRegistry(
	s *store.RecordStore,
	riskEval *risk.Evaluator,
	selector *risk.Selector,
	compEval *compliance.Evaluator,
	retriever *policy.Retriever,
	router *Router,
	tracker *Tracker,
	trail audit.Recorder,
	metrics *Metrics,
	logger *zap.Logger,
	now func() time.Time,
) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:     s,
		riskEval:  riskEval,
		selector:  selector,
		compEval:  compEval,
		retriever: retriever,
		router:    router,
		tracker:   tracker,
		trail:     trail,
		metrics:   metrics,
		logger:    logger.Named("registry"),
		now:       now,
	}
}

// Tracker открывает доступ к стейт-машине (для ответов о стадии)
func (g *Registry) Tracker() *Tracker { return g.tracker }

// Invoke исполняет одну операцию закрытого набора для указанного треда
func (g *Registry) Invoke(ctx context.Context, threadID string, op OpKind, args json.RawMessage) (interface{}, error) {
	start := g.now()
	g.metrics.OpTotal.WithLabelValues(string(op)).Inc()

	event := audit.Event{
		ID:        uuid.New().String(),
		TraceID:   ExtractTraceID(ctx),
		ThreadID:  threadID,
		Op:        string(op),
		Params:    rawToMap(args),
		Timestamp: start,
	}

	status := audit.StatusSuccess
	defer func() {
		g.metrics.OpDuration.WithLabelValues(string(op), status).Observe(time.Since(start).Seconds())
	}()

	// 1. Скоуп токена. Если auth выключен (dev), скоупов в контексте нет — пропускаем.
	scope, known := opScopes[op]
	if !known {
		status = audit.StatusRejected
		event.Status = status
		event.Error = "unknown op"
		g.trail.Record(event)
		g.metrics.ErrorTotal.WithLabelValues("unknown_op").Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOp, op)
	}
	if scopes, ok := scopesFrom(ctx); ok && !scopes[scope] {
		status = audit.StatusRejected
		event.Status = status
		event.Error = "token does not grant " + scope
		g.trail.Record(event)
		g.metrics.ErrorTotal.WithLabelValues("scope").Inc()
		return nil, fmt.Errorf("security: token does not grant %s for %s", scope, op)
	}

	// 2. Контракт порядка расследования
	if _, err := g.tracker.Advance(threadID, op); err != nil {
		status = audit.StatusRejected
		event.Status = status
		event.Error = err.Error()
		g.trail.Record(event)
		g.metrics.ErrorTotal.WithLabelValues("out_of_order").Inc()
		return nil, err
	}

	// 3. Исполнение
	result, err := g.dispatch(ctx, threadID, op, args)

	// 4. Аудит результата
	event.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		status = audit.StatusFailed
		event.Status = status
		event.Error = err.Error()
		g.countError(err)
	} else {
		event.Status = audit.StatusSuccess
		event.Result = result
	}
	g.trail.Record(event)

	return result, err
}

func (g *Registry) dispatch(ctx context.Context, threadID string, op OpKind, args json.RawMessage) (interface{}, error) {
	switch op {
	case OpListTransactions:
		var a ListArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		start, end, err := store.ParseRange(a.StartTime, a.EndTime)
		if err != nil {
			return nil, err
		}
		txns := g.store.ListTransactions(a.MerchantID, start, end, store.TxFilter{
			Status:      domain.TxStatus(a.Status),
			DeclineCode: a.DeclineCode,
		})
		return &ListResult{
			MerchantID:   a.MerchantID,
			StartTime:    a.StartTime,
			EndTime:      a.EndTime,
			Count:        len(txns),
			Transactions: txns,
		}, nil

	case OpListRecent:
		var a ListRecentArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		hours := a.WindowHours
		if hours <= 0 {
			hours = risk.DefaultWindowHours
		}
		end := g.now()
		start := end.Add(-time.Duration(hours) * time.Hour)
		txns := g.store.ListTransactions(a.MerchantID, start, end, store.TxFilter{
			Status: domain.TxStatus(a.Status),
		})
		return &ListResult{
			MerchantID:   a.MerchantID,
			StartTime:    start.Format(time.RFC3339),
			EndTime:      end.Format(time.RFC3339),
			Count:        len(txns),
			Transactions: txns,
		}, nil

	case OpSelectRepresentative:
		var a SelectArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		return g.selector.Pick(a.MerchantID, a.WindowHours, g.now()), nil

	case OpEvaluateRisk:
		var a EvaluateRiskArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		return g.riskEval.Evaluate(a.TransactionID)

	case OpEvaluateCompliance:
		var a EvaluateComplianceArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		return g.compEval.Evaluate(a.MerchantID)

	case OpRetrievePolicy:
		var a RetrieveArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		return g.retriever.Search(a.Query, a.Context), nil

	case OpRouteEscalation:
		var a RouteArgs
		if err := unmarshalArgs(args, &a); err != nil {
			return nil, err
		}
		res, err := g.router.Route(ctx, &a.Facts, a.ThreadRef)
		// Решение вынесено и доставка отработана (или провалена и отражена) —
		// расследование закрыто в любом случае.
		g.tracker.Complete(threadID)
		return res, err
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOp, op)
}

func (g *Registry) countError(err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		g.metrics.ErrorTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, domain.ErrInvalidTimeRange):
		g.metrics.ErrorTotal.WithLabelValues("invalid_range").Inc()
	case errors.Is(err, domain.ErrDeliveryFailed):
		g.metrics.ErrorTotal.WithLabelValues("delivery").Inc()
	default:
		g.metrics.ErrorTotal.WithLabelValues("internal").Inc()
	}
}

func unmarshalArgs(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("args are required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed args: %w", err)
	}
	return nil
}

// Вспомогательная конвертация аргументов для аудита
func rawToMap(raw json.RawMessage) map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}
