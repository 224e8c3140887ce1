package domain

// EscalationDecision — транзиентный результат роутера эскалаций.
// Живет в рамках одного расследования и не персистится как сущность
// (след остается в аудите).
type EscalationDecision struct {
	Required bool   `json:"required"`
	Channel  string `json:"channel,omitempty"`
	Message  string `json:"message,omitempty"`

	// Какие именно условия сработали — для аудита и ответа оператору
	Triggers []string `json:"triggers,omitempty"`
}

// DeliveryResult — итог попытки доставки эскалации внешнему мессенджеру
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Retried   bool   `json:"retried"` // true = успех/провал случился со второй попытки
	Channel   string `json:"channel"` // Фактический канал (после ремапа allow-list)
	Error     string `json:"error,omitempty"`
}

// EscalationFacts — входные факты роутера. Собираются оркестратором из
// выходов эвалуаторов; роутер сам ничего не вычисляет и не ходит в стор.
type EscalationFacts struct {
	MerchantID    string            `json:"merchant_id"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Verdict       MonitoringVerdict `json:"verdict,omitempty"`
	Band          RiskBand          `json:"risk_band,omitempty"`
	RiskScore     float64           `json:"risk_score"`

	ThreeDSResult string `json:"three_ds_result,omitempty"`
	AVSResult     string `json:"avs_result,omitempty"`
	CVVResult     string `json:"cvv_result,omitempty"`
	DeclineCode   string `json:"decline_code,omitempty"`

	// Операционные флаги. Детекция спайка отказов — вне ядра:
	// флаг выставляет вызывающая сторона по своим данным.
	DeclineSpike       bool `json:"decline_spike"`
	ConflictingSignals bool `json:"conflicting_signals"`

	// Краткая сводка фактов для текста сообщения (без карточных данных)
	Summary []string `json:"summary,omitempty"`
}
