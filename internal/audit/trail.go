package audit

/*
Файл trail.go реализует след расследований (Investigation Trail) —
неблокирующий сборщик аудита решений ядра.

Ключевые свойства:
- Non-blocking Logging: события уходят в буферизованный канал, задержки
  записи в БД не влияют на Response Time операций.
- Batching: накопление в памяти и пакетная вставка в PostgreSQL по
  таймеру или при достижении лимита (100 событий).
- Drain Pattern & Graceful Shutdown: при остановке сервиса буфер
  вычитывается полностью (sync.WaitGroup + закрытие канала), финальный
  flush гарантирует отсутствие потерь при перезагрузке.
- Load Shedding: при переполнении буфера событие не блокирует вызов,
  а фиксируется в обычном логе.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BatchSink определяет, куда физически сохраняются события
type BatchSink interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

// Recorder — то, что видят операционные слои
type Recorder interface {
	Record(event Event)
}

type Trail struct {
	ch     chan Event // Буфер для асинхронности
	sink   BatchSink
	logger *zap.Logger
	wg     sync.WaitGroup

	// mu защищает closed и сам момент закрытия канала: Record держит RLock
	// на время отправки, Stop закрывает канал под Lock. Отправка в закрытый
	// канал исключена.
	mu     sync.RWMutex
	closed bool

	// Опциональный колбэк заполненности буфера (для метрик)
	onFill func(n int)
}

func NewTrail(sink BatchSink, logger *zap.Logger) *Trail {
	return &Trail{
		ch:     make(chan Event, 10000), // Очередь на 10к событий
		sink:   sink,
		logger: logger.With(zap.String("mod", "trail")),
	}
}

// OnFill регистрирует колбэк для публикации заполненности буфера в метрики
func (t *Trail) OnFill(fn func(n int)) { t.onFill = fn }

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
// Повторный Stop безопасен.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true

	// Drain Pattern: завершение воркера — только через закрытие канала
	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

func (t *Trail) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.logger.Warn("trail event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: заполненный буфер не должен тормозить Hot Path
	select {
	case t.ch <- event:
		if t.onFill != nil {
			t.onFill(len(t.ch))
		}
	default:
		t.logger.Error("trail_buffer_overflow",
			zap.String("thread_id", event.ThreadID),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на shutdown уже может быть закрыт
			if err := t.sink.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("trail flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер сначала вычитал остатки,
				// теперь финальный сброс и выход.
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// LogSink — запасной sink, когда Postgres не сконфигурирован:
// события уходят в структурный лог и нигде больше не хранятся.
type LogSink struct {
	Logger *zap.Logger
}

func (s *LogSink) WriteBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		s.Logger.Info("trail_event",
			zap.String("id", e.ID),
			zap.String("thread_id", e.ThreadID),
			zap.String("op", e.Op),
			zap.String("status", e.Status),
			zap.Int64("duration_ms", e.DurationMs),
		)
	}
	return nil
}
