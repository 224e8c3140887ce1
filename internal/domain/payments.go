package domain

import "time"

// TxStatus — статус авторизации транзакции в сети
type TxStatus string

const (
	TxApproved TxStatus = "approved"
	TxDeclined TxStatus = "declined"
)

// MerchantProfile — профиль мерчанта из датасета.
// Запись неизменяема после загрузки, владелец — RecordStore.
type MerchantProfile struct {
	MerchantID    string  `json:"merchant_id"` // Уникален без учета регистра
	MerchantName  string  `json:"merchant_name"`
	MCC           string  `json:"mcc"` // Категорийный код (например, "4722" — travel)
	Region        string  `json:"region"`
	AvgTicketSize float64 `json:"avg_ticket_size"`
	MonthlyVolume float64 `json:"monthly_volume"`

	// Единственный вход для вердикта мониторинга
	ChargebackRatio float64 `json:"chargeback_ratio"`

	MonitoringProgramStatus string `json:"monitoring_program_status"`
	RiskSegment             string `json:"risk_segment"` // "Low" | "Medium" | "High"
	OnboardingDate          string `json:"onboarding_date"`
	Processor               string `json:"processor"`

	Integration    map[string]interface{} `json:"integration,omitempty"`
	PrimaryContact map[string]interface{} `json:"primary_contact,omitempty"`
}

// Transaction — одна авторизация. Поля decline_* заполнены только при status=declined
// (моделью не форсится, но эвалуаторы на это опираются).
type Transaction struct {
	TransactionID string   `json:"transaction_id"` // Уникален без учета регистра
	MerchantID    string   `json:"merchant_id"`
	Amount        float64  `json:"amount"`
	Currency      string   `json:"currency"`
	Timestamp     string   `json:"timestamp"` // ISO-8601 с оффсетом, как в датасете
	Status        TxStatus `json:"status"`

	DeclineCode   string `json:"decline_code,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`

	// Результаты проверок аутентификации. Пустая строка = сигнал отсутствует.
	AVSResult     string `json:"avs_result,omitempty"`
	CVVResult     string `json:"cvv_result,omitempty"`
	ThreeDSResult string `json:"three_ds_result,omitempty"`

	RiskScore     float64 `json:"risk_score"` // [0,1], предрассчитан внешним скорингом
	IssuerCountry string  `json:"issuer_country"`
	Channel       string  `json:"channel"` // "ecom" | "pos" | ...

	CardToken string `json:"card_token,omitempty"`
	MaskedPAN string `json:"masked_pan,omitempty"`
	Note      string `json:"note,omitempty"`

	// Распарсенный Timestamp. Заполняется один раз при загрузке датасета,
	// чтобы сортировки и оконные выборки не парсили строку повторно.
	At time.Time `json:"-"`
}

// Chargeback пока не потребляется эвалуаторами, но входит в контракт стора
// (задел под будущие проверки диспутов).
type Chargeback struct {
	ChargebackID  string  `json:"chargeback_id"`
	MerchantID    string  `json:"merchant_id"`
	TransactionID string  `json:"transaction_id"`
	ReasonCode    string  `json:"reason_code"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	ReceivedDate  string  `json:"received_date"`
	Status        string  `json:"status"` // open/won/lost/...
}
