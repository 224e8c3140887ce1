package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/payops-agent-gateway/internal/domain"
)

func TestTracker_FullLegalSequence(t *testing.T) {
	tr := NewTracker()
	thread := "t-1"

	steps := []struct {
		op   OpKind
		want Stage
	}{
		{OpListRecent, StageGathering},
		{OpSelectRepresentative, StageSelecting},
		{OpEvaluateRisk, StageAnalyzing},
		{OpRetrievePolicy, StagePolicyLookup},
		{OpRouteEscalation, StageEscalationDecision},
	}
	for _, step := range steps {
		got, err := tr.Advance(thread, step.op)
		require.NoError(t, err, "op %s must be legal", step.op)
		assert.Equal(t, step.want, got)
	}

	tr.Complete(thread)
	assert.Equal(t, StageDone, tr.Stage(thread))
}

func TestTracker_RouteEscalationOutOfOrder(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpRouteEscalation)
	assert.ErrorIs(t, err, domain.ErrOutOfOrder, "escalation without a full chain is rejected")

	// Даже после начала сбора — рано
	_, err = tr.Advance("t-2", OpListRecent)
	require.NoError(t, err)
	_, err = tr.Advance("t-2", OpRouteEscalation)
	assert.ErrorIs(t, err, domain.ErrOutOfOrder)
}

func TestTracker_SelectRequiresGathering(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpSelectRepresentative)
	assert.ErrorIs(t, err, domain.ErrOutOfOrder)
}

func TestTracker_StandaloneOpsFromIdle(t *testing.T) {
	tr := NewTracker()

	// Одиночные вопросы легальны без открытого расследования
	_, err := tr.Advance("t-1", OpEvaluateRisk)
	assert.NoError(t, err)
	assert.Equal(t, StageIdle, tr.Stage("t-1"), "standalone risk question does not open an investigation")

	_, err = tr.Advance("t-1", OpRetrievePolicy)
	assert.NoError(t, err)
	assert.Equal(t, StageIdle, tr.Stage("t-1"))
}

func TestTracker_StandaloneOpsInsideChainRejected(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)

	// retrieve_policy посреди сбора — нарушение порядка
	_, err = tr.Advance("t-1", OpRetrievePolicy)
	assert.ErrorIs(t, err, domain.ErrOutOfOrder)
}

func TestTracker_OutsideMachineOpsAlwaysLegal(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)

	for _, op := range []OpKind{OpListTransactions, OpEvaluateCompliance} {
		_, err := tr.Advance("t-1", op)
		assert.NoError(t, err, "op %s is outside the state machine", op)
	}
	assert.Equal(t, StageGathering, tr.Stage("t-1"), "outside ops do not move the machine")
}

func TestTracker_ListRecentReopens(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)
	_, err = tr.Advance("t-1", OpSelectRepresentative)
	require.NoError(t, err)

	// Новое окно посреди цепочки перезапускает расследование
	got, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)
	assert.Equal(t, StageGathering, got)
}

func TestTracker_ThreadsAreIsolated(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)

	// Стадия t-1 не влияет на t-2
	_, err = tr.Advance("t-2", OpSelectRepresentative)
	assert.ErrorIs(t, err, domain.ErrOutOfOrder)
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpListRecent)
	require.NoError(t, err)

	tr.Reset("t-1")
	assert.Equal(t, StageIdle, tr.Stage("t-1"))
}

func TestTracker_UnknownOp(t *testing.T) {
	tr := NewTracker()

	_, err := tr.Advance("t-1", OpKind("explode"))
	assert.ErrorIs(t, err, domain.ErrUnknownOp)
}
