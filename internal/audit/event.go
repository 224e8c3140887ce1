package audit

import "time"

// Статусы событий следа
const (
	StatusSuccess  = "SUCCESS"
	StatusFailed   = "FAILED"
	StatusRejected = "REJECTED" // Вызов отклонен контрактом (out-of-order, scope)
)

// Event — одна запись следа расследования: вызов операции ядра или
// решение об эскалации, с параметрами и результатом.
type Event struct {
	ID       string                 `json:"id"`        // UUID события
	TraceID  string                 `json:"trace_id"`  // Сквозной ID запроса
	ThreadID string                 `json:"thread_id"` // Тред расследования
	Op       string                 `json:"op"`        // Какая операция вызывалась
	Params   map[string]interface{} `json:"params"`    // С какими аргументами

	// Результат
	Status     string      `json:"status"`
	Result     interface{} `json:"result,omitempty"` // Что вернули оркестратору
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}
