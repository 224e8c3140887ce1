package connectors

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MockMessenger — локальная имитация messaging-коллаборатора для dev-режима
// и тестов. Позволяет заскриптовать N провалов перед успехом, чтобы
// проверять контракт "ровно один ретрай".
type MockMessenger struct {
	mu        sync.Mutex
	failFirst int // Сколько первых вызовов провалить
	calls     int
	logger    *zap.Logger
}

func NewMockMessenger(logger *zap.Logger) *MockMessenger {
	return &MockMessenger{logger: logger.Named("mock-messenger")}
}

// FailFirst настраивает количество провалов перед успешной доставкой
func (m *MockMessenger) FailFirst(n int) *MockMessenger {
	m.mu.Lock()
	m.failFirst = n
	m.mu.Unlock()
	return m
}

// Calls — сколько раз дергали Send (для ассертов ретраев)
func (m *MockMessenger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockMessenger) Send(ctx context.Context, channel, text, threadRef string) (*SendReceipt, error) {
	// Имитируем сетевую задержку 5-30мс
	latency := time.Duration(5+rand.Intn(25)) * time.Millisecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	m.calls++
	fail := m.calls <= m.failFirst
	call := m.calls
	m.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("mock messenger: transient failure (call %d)", call)
	}

	m.logger.Info("mock escalation delivered",
		zap.String("channel", channel),
		zap.Int("chars", len(text)),
	)

	return &SendReceipt{
		OK:      true,
		TS:      strconv.FormatInt(time.Now().UnixNano(), 10),
		Channel: channel,
	}, nil
}
