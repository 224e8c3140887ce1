package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
	"github.com/xela07ax/payops-agent-gateway/internal/policy"
	"github.com/xela07ax/payops-agent-gateway/internal/store"
)

func testCatalog(t *testing.T) *policy.Catalog {
	t.Helper()
	kb := &domain.PolicyCatalog{
		Version: "test-1",
		MonitoringProgram: domain.MonitoringProgram{
			EarlyWarningThreshold: 0.009,
			ApproachingThreshold:  0.012,
			MonitoringThreshold:   0.015,
		},
		FraudRiskBands: domain.FraudRiskBands{
			Low:    domain.BandRange{MinInclusive: 0, MaxExclusive: 0.40},
			Medium: domain.BandRange{MinInclusive: 0.40, MaxExclusive: 0.70},
			High:   domain.BandRange{MinInclusive: 0.70, MaxExclusive: 1.01},
		},
		Escalation: domain.EscalationMeta{OpsChannel: "#payments-ops", RiskChannel: "#risk-approvals"},
	}
	cat := policy.NewCatalog(kb, zap.NewNop())
	require.NoError(t, cat.Validate())
	return cat
}

func storeWithMerchants(merchants ...domain.MerchantProfile) *store.RecordStore {
	return store.NewRecordStore(&store.Dataset{Merchants: merchants}, zap.NewNop())
}

func TestEvaluate_VerdictBuckets(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  domain.MonitoringVerdict
	}{
		{"healthy", 0.004, domain.VerdictHealthy},
		{"just below early warning", 0.0089, domain.VerdictHealthy},
		{"early warning at threshold", 0.009, domain.VerdictEarlyWarning},
		{"approaching", 0.013, domain.VerdictApproaching},
		{"monitoring at threshold", 0.015, domain.VerdictMonitoring},
		{"deep in monitoring", 0.03, domain.VerdictMonitoring},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := storeWithMerchants(domain.MerchantProfile{
				MerchantID:      "MER-1001",
				MCC:             "5732",
				RiskSegment:     "Low",
				ChargebackRatio: tc.ratio,
			})
			e := NewEvaluator(s, testCatalog(t), zap.NewNop())

			rep, err := e.Evaluate("MER-1001")
			require.NoError(t, err)
			assert.Equal(t, tc.want, rep.Verdict)
			assert.Equal(t, tc.ratio, rep.ChargebackRatio)
		})
	}
}

func TestEvaluate_SnippetCategory(t *testing.T) {
	tests := []struct {
		name    string
		mcc     string
		segment string
		want    string
	}{
		{"travel always chargeback playbook", "4722", "High", SnippetChargebackRemediation},
		{"high segment gets 3ds step-up", "5732", "High", SnippetThreeDSStepUp},
		{"digital goods 5815", "5815", "Low", SnippetThreeDSStepUp},
		{"digital goods 5816", "5816", "Medium", SnippetThreeDSStepUp},
		{"default", "5732", "Low", SnippetChargebackRemediation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := storeWithMerchants(domain.MerchantProfile{
				MerchantID:      "MER-X",
				MCC:             tc.mcc,
				RiskSegment:     tc.segment,
				ChargebackRatio: 0.01,
			})
			e := NewEvaluator(s, testCatalog(t), zap.NewNop())

			rep, err := e.Evaluate("MER-X")
			require.NoError(t, err)
			assert.Equal(t, tc.want, rep.SnippetCategory)
		})
	}
}

func TestEvaluate_NotFound(t *testing.T) {
	e := NewEvaluator(storeWithMerchants(), testCatalog(t), zap.NewNop())

	_, err := e.Evaluate("MER-MISSING")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluate_ThresholdsEchoed(t *testing.T) {
	s := storeWithMerchants(domain.MerchantProfile{MerchantID: "MER-1001", ChargebackRatio: 0.01})
	e := NewEvaluator(s, testCatalog(t), zap.NewNop())

	rep, err := e.Evaluate("MER-1001")
	require.NoError(t, err)
	assert.Equal(t, 0.009, rep.Thresholds.EarlyWarningThreshold)
	assert.Equal(t, 0.015, rep.Thresholds.MonitoringThreshold)
}
