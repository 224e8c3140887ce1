package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

// Генератор демо-датасета: четыре JSON-файла, которые ожидает загрузчик.
// Данные синтетические, но покрывают оба расследуемых сценария:
// high-risk отказ с кодом 91 и мерчант в зоне мониторинга чарджбеков.
func main() {
	dir := flag.String("dir", "./payops_demo_data", "target directory for the demo dataset")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("cannot create %s: %v", *dir, err)
	}

	now := time.Now().UTC().Truncate(time.Minute)
	ts := func(hoursAgo int) string { return now.Add(-time.Duration(hoursAgo) * time.Hour).Format(time.RFC3339) }

	merchants := []domain.MerchantProfile{
		{
			MerchantID:              "MER-1001",
			MerchantName:            "Altitude Travel Group",
			MCC:                     "4722",
			Region:                  "EU",
			AvgTicketSize:           412.50,
			MonthlyVolume:           1_250_000,
			ChargebackRatio:         0.0132,
			MonitoringProgramStatus: "active",
			RiskSegment:             "High",
			OnboardingDate:          "2023-04-11",
			Processor:               "acme-pay",
		},
		{
			MerchantID:              "MER-1002",
			MerchantName:            "Brightcart Electronics",
			MCC:                     "5732",
			Region:                  "US",
			AvgTicketSize:           89.99,
			MonthlyVolume:           480_000,
			ChargebackRatio:         0.0041,
			MonitoringProgramStatus: "none",
			RiskSegment:             "Low",
			OnboardingDate:          "2021-09-02",
			Processor:               "acme-pay",
		},
		{
			MerchantID:              "MER-1003",
			MerchantName:            "Pixel Arcade Digital",
			MCC:                     "5816",
			Region:                  "US",
			AvgTicketSize:           14.99,
			MonthlyVolume:           210_000,
			ChargebackRatio:         0.0095,
			MonitoringProgramStatus: "watch",
			RiskSegment:             "Medium",
			OnboardingDate:          "2024-01-20",
			Processor:               "globex",
		},
	}

	transactions := []domain.Transaction{
		{
			TransactionID: "TXN-9001",
			MerchantID:    "MER-1001",
			Amount:        1249.00,
			Currency:      "EUR",
			Timestamp:     ts(3),
			Status:        domain.TxDeclined,
			DeclineCode:   "91",
			DeclineReason: "Issuer or switch inoperative",
			AVSResult:     "U",
			CVVResult:     "N",
			ThreeDSResult: "FAILED",
			RiskScore:     0.85,
			IssuerCountry: "DE",
			Channel:       "ecom",
		},
		{
			TransactionID: "TXN-9002",
			MerchantID:    "MER-1001",
			Amount:        389.90,
			Currency:      "EUR",
			Timestamp:     ts(7),
			Status:        domain.TxApproved,
			AVSResult:     "Y",
			CVVResult:     "M",
			ThreeDSResult: "SUCCESS",
			RiskScore:     0.22,
			IssuerCountry: "FR",
			Channel:       "ecom",
		},
		{
			TransactionID: "TXN-9003",
			MerchantID:    "MER-1001",
			Amount:        945.10,
			Currency:      "EUR",
			Timestamp:     ts(20),
			Status:        domain.TxDeclined,
			DeclineCode:   "05",
			DeclineReason: "Do not honor",
			AVSResult:     "N",
			CVVResult:     "N",
			ThreeDSResult: "NOT_ENROLLED",
			RiskScore:     0.64,
			IssuerCountry: "ES",
			Channel:       "ecom",
		},
		{
			TransactionID: "TXN-9101",
			MerchantID:    "MER-1002",
			Amount:        59.99,
			Currency:      "USD",
			Timestamp:     ts(5),
			Status:        domain.TxApproved,
			AVSResult:     "Y",
			CVVResult:     "M",
			ThreeDSResult: "SUCCESS",
			RiskScore:     0.08,
			IssuerCountry: "US",
			Channel:       "pos",
		},
		{
			TransactionID: "TXN-9201",
			MerchantID:    "MER-1003",
			Amount:        14.99,
			Currency:      "USD",
			Timestamp:     ts(2),
			Status:        domain.TxDeclined,
			DeclineCode:   "51",
			DeclineReason: "Insufficient funds",
			AVSResult:     "Y",
			CVVResult:     "M",
			ThreeDSResult: "SUCCESS",
			RiskScore:     0.31,
			IssuerCountry: "US",
			Channel:       "ecom",
		},
	}

	chargebacks := []domain.Chargeback{
		{
			ChargebackID:  "CB-5001",
			MerchantID:    "MER-1001",
			TransactionID: "TXN-9003",
			ReasonCode:    "13.1",
			Amount:        945.10,
			Currency:      "EUR",
			ReceivedDate:  ts(10),
			Status:        "open",
		},
	}

	policies := domain.PolicyCatalog{
		Version: "2025.06",
		MonitoringProgram: domain.MonitoringProgram{
			EarlyWarningThreshold: 0.009,
			ApproachingThreshold:  0.012,
			MonitoringThreshold:   0.015,
		},
		FraudRiskBands: domain.FraudRiskBands{
			Low:    domain.BandRange{Label: "Low", MinInclusive: 0.0, MaxExclusive: 0.40},
			Medium: domain.BandRange{Label: "Medium", MinInclusive: 0.40, MaxExclusive: 0.70},
			High:   domain.BandRange{Label: "High", MinInclusive: 0.70, MaxExclusive: 1.01},
		},
		DeclineCodeGuidance: map[string]domain.DeclineGuidance{
			"05": {
				Title: "Do not honor",
				GeneralGuidance: []string{
					"Ask the cardholder to contact the issuing bank.",
					"Retry only after issuer confirmation; repeated blind retries hurt approval rates.",
				},
			},
			"51": {
				Title: "Insufficient funds",
				GeneralGuidance: []string{
					"Suggest an alternative payment method.",
					"A single delayed retry within 48 hours is acceptable.",
				},
			},
			"91": {
				Title: "Issuer or switch inoperative",
				GeneralGuidance: []string{
					"Issuer-side outage: retry after a short delay.",
					"If the pattern repeats across merchants, raise a network incident.",
				},
			},
		},
		KBSnippets: []domain.KBSnippet{
			{
				ID:    "KB-CHARGEBACK-REMEDIATION",
				Title: "Chargeback remediation playbook",
				Tags:  []string{"chargeback", "monitoring", "remediation"},
				Content: []string{
					"Open a remediation plan when the ratio enters the early-warning zone.",
					"Review refund policy visibility and delivery confirmation practices.",
					"Weekly ratio tracking until two consecutive healthy cycles.",
				},
			},
			{
				ID:    "KB-3DS-STEPUP",
				Title: "3DS step-up policy",
				Tags:  []string{"3ds", "authentication", "fraud", "step-up"},
				Content: []string{
					"Enable step-up authentication for high risk score e-commerce traffic.",
					"Weak AVS/CVV together with failed 3DS requires manual review before retry.",
				},
			},
			{
				ID:    "KB-DECLINE-HANDLING",
				Title: "Decline code handling basics",
				Tags:  []string{"decline", "codes", "retry"},
				Content: []string{
					"Soft declines (91) may be retried; hard declines (05 without issuer contact) must not.",
					"Track decline spikes per merchant over a rolling 48 hour window.",
				},
			},
		},
		Escalation: domain.EscalationMeta{
			OpsChannel:  "#payments-ops",
			RiskChannel: "#risk-approvals",
		},
	}

	write := func(name string, v interface{}) {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			log.Fatalf("marshal %s: %v", name, err)
		}
		path := filepath.Join(*dir, name)
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("wrote %s", path)
	}

	write("merchants.json", merchants)
	write("transactions.json", transactions)
	write("chargebacks.json", chargebacks)
	write("policies_kb.json", policies)
}
