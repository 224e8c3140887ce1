package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/connectors"
	"github.com/xela07ax/payops-agent-gateway/internal/domain"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Messenger — контракт внешнего messaging-коллаборатора
type Messenger interface {
	Send(ctx context.Context, channel, text, threadRef string) (*connectors.SendReceipt, error)
}

// DeliveryWrapper оборачивает мессенджер в слой надежности и контрактных
// гарантий доставки эскалаций:
//   - allow-list каналов: валидных направлений ровно два, всё прочее
//     ремапится в операционный канал (никогда не дропается молча);
//   - rate limiter + circuit breaker на внешний вызов;
//   - ровно один ретрай при провале доставки; второй провал наружу
//     уходит как ErrDeliveryFailed, не проглатывается.
type DeliveryWrapper struct {
	next    Messenger
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	allowed  map[string]struct{}
	fallback string // Операционный канал — дефолт при ремапе

	metrics *Metrics
	logger  *zap.Logger
}

func NewDeliveryWrapper(next Messenger, esc domain.EscalationMeta, metrics *Metrics, logger *zap.Logger) *DeliveryWrapper {
	w := &DeliveryWrapper{
		next: next,
		allowed: map[string]struct{}{
			esc.OpsChannel:  {},
			esc.RiskChannel: {},
		},
		fallback: esc.OpsChannel,
		metrics:  metrics,
		logger:   logger.Named("delivery"),
	}

	// Настройка предохранителя
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payops-messenger",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerState.Set(1)
			} else {
				metrics.BreakerState.Set(0)
			}
		},
	})

	// Эскалации штучные: 5 rps с запасом на всплеск
	w.limiter = rate.NewLimiter(rate.Limit(5), 10)

	return w
}

// Deliver отправляет эскалацию с контрактом "одна повторная попытка".
// Возвращаемый DeliveryResult заполнен всегда, даже при ошибке:
// вызывающая сторона обязана отразить провал в ответе, а не потерять его.
func (w *DeliveryWrapper) Deliver(ctx context.Context, channel, text, threadRef string) (*domain.DeliveryResult, error) {
	// 1. Allow-list: чужой канал — ремап в операционный
	if _, ok := w.allowed[channel]; !ok {
		w.logger.Warn("unapproved escalation channel remapped",
			zap.String("requested", channel),
			zap.String("remapped_to", w.fallback),
		)
		channel = w.fallback
	}

	result := &domain.DeliveryResult{Channel: channel}

	// 2. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("delivery rate limit: %w", err)
	}

	attempts := 0

	// 3. Circuit Breaker поверх ретраев
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			// Первая попытка + ровно один ретрай — контракт доставки
			retry.Attempts(2),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если мессенджер вернул ThrottleError (считал Retry-After заголовок)
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			attempts++
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			_, callErr := w.next.Send(tCtx, channel, text, threadRef)
			return callErr
		})
	})

	result.Retried = attempts > 1

	if err != nil {
		result.Error = err.Error()
		w.metrics.EscalationsTotal.WithLabelValues(channel, "failed").Inc()
		w.logger.Error("escalation delivery failed after retry",
			zap.String("channel", channel),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	result.Delivered = true
	outcome := "delivered"
	if result.Retried {
		outcome = "retried"
	}
	w.metrics.EscalationsTotal.WithLabelValues(channel, outcome).Inc()
	return result, nil
}
