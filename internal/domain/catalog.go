package domain

// RiskBand — классификация risk_score транзакции по границам каталога
type RiskBand string

const (
	BandLow    RiskBand = "Low"
	BandMedium RiskBand = "Medium"
	BandHigh   RiskBand = "High"
)

// MonitoringVerdict — вердикт по chargeback_ratio мерчанта.
// Строго упорядочен по серьезности (см. Severity).
type MonitoringVerdict string

const (
	VerdictHealthy      MonitoringVerdict = "Healthy"
	VerdictEarlyWarning MonitoringVerdict = "EarlyWarning"
	VerdictApproaching  MonitoringVerdict = "Approaching"
	VerdictMonitoring   MonitoringVerdict = "Monitoring"
)

// Severity возвращает численный ранг вердикта для сравнений.
// Неизвестное значение трактуем как Healthy (0) — Zero Trust тут не нужен,
// вердикт порождаем только мы сами.
func (v MonitoringVerdict) Severity() int {
	switch v {
	case VerdictEarlyWarning:
		return 1
	case VerdictApproaching:
		return 2
	case VerdictMonitoring:
		return 3
	default:
		return 0
	}
}

// AtLeast — true, если вердикт не мягче порогового
func (v MonitoringVerdict) AtLeast(other MonitoringVerdict) bool {
	return v.Severity() >= other.Severity()
}

// BandRange — одна полоса таблицы рисков. Границы: [MinInclusive, MaxExclusive)
type BandRange struct {
	Label        string  `json:"label"`
	MinInclusive float64 `json:"min_inclusive"`
	MaxExclusive float64 `json:"max_exclusive"`
}

// FraudRiskBands — таблица полос. По контракту конфигурации полосы смежные
// и не пересекаются; валидируется при загрузке (policy.Catalog).
type FraudRiskBands struct {
	Low    BandRange `json:"low"`
	Medium BandRange `json:"medium"`
	High   BandRange `json:"high"`
}

// MonitoringProgram — три восходящих порога программы мониторинга
type MonitoringProgram struct {
	EarlyWarningThreshold float64 `json:"early_warning_threshold"`
	ApproachingThreshold  float64 `json:"approaching_threshold"`
	MonitoringThreshold   float64 `json:"monitoring_threshold"`
}

// DeclineGuidance — рекомендации по конкретному коду отказа
type DeclineGuidance struct {
	Title           string   `json:"title,omitempty"`
	GeneralGuidance []string `json:"general_guidance"`
}

// KBSnippet — блок внутреннего ранбука, доступный ретриверу
type KBSnippet struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Content []string `json:"content"`
}

// EscalationMeta — каталожные метаданные эскалаций: два одобренных канала.
// Других валидных направлений не существует.
type EscalationMeta struct {
	OpsChannel  string `json:"ops_channel"`  // Операционные/сетевые инциденты
	RiskChannel string `json:"risk_channel"` // Фрод / высокий риск
}

// PolicyCatalog — версионированный неизменяемый бандл политик.
// Загружается один раз на старте процесса из policies_kb.json.
type PolicyCatalog struct {
	Version             string                     `json:"version"`
	MonitoringProgram   MonitoringProgram          `json:"monitoring_program"`
	FraudRiskBands      FraudRiskBands             `json:"fraud_risk_bands"`
	DeclineCodeGuidance map[string]DeclineGuidance `json:"decline_code_guidance"`
	KBSnippets          []KBSnippet                `json:"kb_snippets"`
	PCIHygiene          map[string]interface{}     `json:"pci_hygiene,omitempty"`
	Escalation          EscalationMeta             `json:"escalation"`
}
