package audit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// captureSink копит пачки под мьютексом, чтобы тесты могли считать события
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) WriteBatch(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestTrail_StopFlushesBuffer(t *testing.T) {
	sink := &captureSink{}
	tr := NewTrail(sink, zap.NewNop())
	tr.Start()

	for i := 0; i < 7; i++ {
		tr.Record(Event{ID: strconv.Itoa(i), Op: "evaluate_risk", Status: StatusSuccess})
	}
	tr.Stop()

	assert.Equal(t, 7, sink.count(), "остановка дописывает весь буфер")
}

func TestTrail_RecordAfterStopIsDropped(t *testing.T) {
	sink := &captureSink{}
	tr := NewTrail(sink, zap.NewNop())
	tr.Start()
	tr.Stop()

	tr.Record(Event{ID: "late", Op: "retrieve_policy"})
	assert.Equal(t, 0, sink.count())
}

func TestTrail_ConcurrentRecordDuringStop(t *testing.T) {
	sink := &captureSink{}
	tr := NewTrail(sink, zap.NewNop())
	tr.Start()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tr.Record(Event{ID: strconv.Itoa(w*1000 + i), Op: "list_transactions"})
			}
		}(w)
	}

	// Stop конкурирует с писателями: ни паники, ни send on closed channel
	time.Sleep(time.Millisecond)
	tr.Stop()
	wg.Wait()

	// Повторный Stop — no-op
	tr.Stop()
}
