package engine

import (
	"fmt"
	"sync"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

// Stage — состояние расследования в рамках одного треда.
// Раньше «обязательный порядок тулов» жил в тексте промпта и полагался
// на самодисциплину модели; здесь это явная стейт-машина, и ядро само
// отклоняет вызовы вне порядка.
type Stage string

const (
	StageIdle               Stage = "Idle"
	StageGathering          Stage = "Gathering"
	StageSelecting          Stage = "Selecting"
	StageAnalyzing          Stage = "Analyzing"
	StagePolicyLookup       Stage = "PolicyLookup"
	StageEscalationDecision Stage = "EscalationDecision"
	StageDone               Stage = "Done"
)

// Tracker ведет стадию расследования per-thread. Треды изолированы:
// общая мапа под RWMutex — единственное разделяемое состояние.
type Tracker struct {
	mu      sync.RWMutex
	threads map[string]Stage
}

func NewTracker() *Tracker {
	return &Tracker{threads: make(map[string]Stage)}
}

// Stage возвращает текущую стадию треда (Idle, если тред не открывался)
func (t *Tracker) Stage(threadID string) Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.threads[threadID]; ok {
		return s
	}
	return StageIdle
}

// Reset сбрасывает тред в Idle (расследование брошено или завершено)
func (t *Tracker) Reset(threadID string) {
	t.mu.Lock()
	delete(t.threads, threadID)
	t.mu.Unlock()
}

// Advance валидирует операцию против текущей стадии и продвигает машину.
//
// Правила:
//   - list_transactions_recent всегда (пере)открывает расследование -> Gathering;
//   - select_representative легален только из Gathering;
//   - evaluate_risk из Selecting продвигает в Analyzing; из Idle/Done —
//     одиночный вопрос по транзакции, машину не трогает;
//   - retrieve_policy из Analyzing продвигает в PolicyLookup; из Idle/Done —
//     одиночный поиск по KB;
//   - route_escalation легален только после полной цепочки (PolicyLookup);
//   - evaluate_compliance и plain list_transactions — вне машины, легальны всегда.
//
// Любое другое сочетание — ErrOutOfOrder: результат такого расследования
// считался бы невалидным.
func (t *Tracker) Advance(threadID string, op OpKind) (Stage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.threads[threadID]
	if !ok {
		cur = StageIdle
	}

	next := cur
	switch op {
	case OpListTransactions, OpEvaluateCompliance:
		// Вне машины

	case OpListRecent:
		next = StageGathering

	case OpSelectRepresentative:
		if cur != StageGathering {
			return cur, t.reject(op, cur)
		}
		next = StageSelecting

	case OpEvaluateRisk:
		switch cur {
		case StageSelecting:
			next = StageAnalyzing
		case StageIdle, StageDone:
			// Одиночный анализ транзакции
		default:
			return cur, t.reject(op, cur)
		}

	case OpRetrievePolicy:
		switch cur {
		case StageAnalyzing:
			next = StagePolicyLookup
		case StageIdle, StageDone:
			// Одиночный поиск по KB
		default:
			return cur, t.reject(op, cur)
		}

	case OpRouteEscalation:
		if cur != StagePolicyLookup {
			return cur, t.reject(op, cur)
		}
		next = StageEscalationDecision

	default:
		return cur, fmt.Errorf("%w: %s", domain.ErrUnknownOp, op)
	}

	if next != cur {
		t.threads[threadID] = next
	}
	return next, nil
}

// Complete закрывает расследование после исполнения решения об эскалации
func (t *Tracker) Complete(threadID string) {
	t.mu.Lock()
	t.threads[threadID] = StageDone
	t.mu.Unlock()
}

func (t *Tracker) reject(op OpKind, cur Stage) error {
	return fmt.Errorf("%w: %s is not allowed in stage %s", domain.ErrOutOfOrder, op, cur)
}
