package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/payops-agent-gateway/internal/connectors"
	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

func newTestRouter(m Messenger) *Router {
	return NewRouter(newTestDelivery(m), testChannels, zap.NewNop())
}

func TestDecide_NoTriggers(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	d := r.Decide(&domain.EscalationFacts{
		MerchantID: "MER-1001",
		Verdict:    domain.VerdictHealthy,
		Band:       domain.BandLow,
		RiskScore:  0.1,
	})

	assert.False(t, d.Required)
	assert.Empty(t, d.Channel)
	assert.Empty(t, d.Triggers)
}

func TestDecide_MonitoringVerdict(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	for _, v := range []domain.MonitoringVerdict{
		domain.VerdictEarlyWarning,
		domain.VerdictApproaching,
		domain.VerdictMonitoring,
	} {
		d := r.Decide(&domain.EscalationFacts{MerchantID: "MER-1001", Verdict: v})
		require.True(t, d.Required, "verdict %s must escalate", v)
		assert.Contains(t, d.Triggers, TriggerMonitoringVerdict)
		assert.Equal(t, "#payments-ops", d.Channel)
	}
}

func TestDecide_HighRiskWeakAuthRoutesToRiskChannel(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	d := r.Decide(&domain.EscalationFacts{
		MerchantID:    "MER-1001",
		TransactionID: "TXN-9001",
		Band:          domain.BandHigh,
		RiskScore:     0.85,
		ThreeDSResult: "FAILED",
	})

	require.True(t, d.Required)
	assert.Contains(t, d.Triggers, TriggerHighRiskWeakAuth)
	assert.Equal(t, "#risk-approvals", d.Channel, "fraud pattern goes to the risk channel")
}

func TestDecide_HighScoreAloneIsNotFraudTrigger(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	// Высокий скор при сильной аутентификации — не фрод-паттерн
	d := r.Decide(&domain.EscalationFacts{
		MerchantID:    "MER-1001",
		Band:          domain.BandHigh,
		RiskScore:     0.9,
		ThreeDSResult: "SUCCESS",
		AVSResult:     "Y",
		CVVResult:     "M",
	})

	assert.NotContains(t, d.Triggers, TriggerHighRiskWeakAuth)
	assert.False(t, d.Required)
}

func TestDecide_DeclineSpikeRoutesToOps(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	d := r.Decide(&domain.EscalationFacts{
		MerchantID:   "MER-1001",
		DeclineSpike: true,
		DeclineCode:  "91",
	})

	require.True(t, d.Required)
	assert.Contains(t, d.Triggers, TriggerDeclineSpike)
	assert.Equal(t, "#payments-ops", d.Channel)
}

func TestDecide_FraudBeatsOpsOnChannelChoice(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	// Оба паттерна разом: канал выбирается по фрод-приоритету
	d := r.Decide(&domain.EscalationFacts{
		MerchantID:   "MER-1001",
		Band:         domain.BandHigh,
		RiskScore:    0.85,
		CVVResult:    "N",
		DeclineSpike: true,
		Verdict:      domain.VerdictMonitoring,
	})

	require.True(t, d.Required)
	assert.Len(t, d.Triggers, 3)
	assert.Equal(t, "#risk-approvals", d.Channel)
}

func TestDecide_MessageContainsFacts(t *testing.T) {
	r := newTestRouter(connectors.NewMockMessenger(zap.NewNop()))

	d := r.Decide(&domain.EscalationFacts{
		MerchantID:    "MER-1001",
		TransactionID: "TXN-9001",
		Band:          domain.BandHigh,
		RiskScore:     0.85,
		Verdict:       domain.VerdictApproaching,
		DeclineCode:   "91",
		ThreeDSResult: "FAILED",
		Summary:       []string{"Declined: 91 (Issuer or switch inoperative)"},
	})

	require.True(t, d.Required)
	assert.Contains(t, d.Message, "MER-1001")
	assert.Contains(t, d.Message, "TXN-9001")
	assert.Contains(t, d.Message, "Approaching")
	assert.Contains(t, d.Message, "decline code: 91")
	assert.Contains(t, d.Message, "triggers:")
}

func TestRoute_NotRequiredSkipsDelivery(t *testing.T) {
	mock := connectors.NewMockMessenger(zap.NewNop())
	r := newTestRouter(mock)

	res, err := r.Route(context.Background(), &domain.EscalationFacts{MerchantID: "MER-1001"}, "thread-1")
	require.NoError(t, err)

	assert.False(t, res.Decision.Required)
	assert.Nil(t, res.Delivery)
	assert.Equal(t, 0, mock.Calls(), "no delivery attempt when escalation is not required")
}

func TestRoute_DeliversWhenRequired(t *testing.T) {
	mock := connectors.NewMockMessenger(zap.NewNop())
	r := newTestRouter(mock)

	res, err := r.Route(context.Background(), &domain.EscalationFacts{
		MerchantID: "MER-1001",
		Verdict:    domain.VerdictMonitoring,
	}, "thread-1")
	require.NoError(t, err)

	require.NotNil(t, res.Delivery)
	assert.True(t, res.Delivery.Delivered)
	assert.Equal(t, 1, mock.Calls())
}

func TestRoute_DoubleFailureReturnsFactsAndError(t *testing.T) {
	mock := connectors.NewMockMessenger(zap.NewNop()).FailFirst(5)
	r := newTestRouter(mock)

	res, err := r.Route(context.Background(), &domain.EscalationFacts{
		MerchantID: "MER-1001",
		Verdict:    domain.VerdictMonitoring,
	}, "thread-1")

	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
	require.NotNil(t, res, "decision and facts must survive a failed delivery")
	assert.True(t, res.Decision.Required)
	require.NotNil(t, res.Delivery)
	assert.False(t, res.Delivery.Delivered)
}
