package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmodels "regflow/internal/document/models"
	regmodels "regflow/internal/registration/models"
	dErrors "regflow/pkg/domain-errors"
)

func stateWith(requestType string, investors int) State {
	s := freshState()
	s.Registration.BrokerID = "ib"
	s.Registration.RequestTypeID = requestType
	if investors > 0 {
		s.Registration.ResizeInvestors(investors)
	}
	return s
}

// walk advances with every gate open and records the steps visited.
func walk(t *testing.T, s State) []Step {
	t.Helper()
	visited := []Step{s.Step}
	open := Gate{Approval: docmodels.StatusApproved, Paid: true}
	for s.Step != StepDocument {
		next, err := Advance(s, open)
		require.NoError(t, err, "advance from %s", s.Step)
		s = next
		visited = append(visited, s.Step)
	}
	return visited
}

func TestAdvanceSkipsInvestorsWithoutCategorization(t *testing.T) {
	for _, rt := range regmodels.RequestTypes() {
		if rt.RequiresCategorization {
			continue
		}
		t.Run(rt.ID, func(t *testing.T) {
			visited := walk(t, stateWith(rt.ID, 0))
			assert.NotContains(t, visited, StepInvestors)
			assert.Equal(t, []Step{
				StepBroker, StepVerification, StepApproval, StepSummary,
				StepPayment, StepReceipt, StepDocument,
			}, visited)

			s := stateWith(rt.ID, 0)
			s.Step = StepVerification
			back, err := Retreat(s)
			require.NoError(t, err)
			assert.Equal(t, StepBroker, back.Step)
		})
	}
}

func TestAdvanceVisitsEveryInvestor(t *testing.T) {
	s := stateWith(regmodels.RequestTypeCategorizeClients, 3)
	s, err := Advance(s, Gate{})
	require.NoError(t, err)
	assert.Equal(t, StepInvestors, s.Step)
	assert.Equal(t, 0, s.InvestorIndex)

	for want := 1; want < 3; want++ {
		s, err = Advance(s, Gate{})
		require.NoError(t, err)
		assert.Equal(t, StepInvestors, s.Step)
		assert.Equal(t, want, s.InvestorIndex)
	}
	s, err = Advance(s, Gate{})
	require.NoError(t, err)
	assert.Equal(t, StepVerification, s.Step)

	t.Run("back from verification re-enters the last investor", func(t *testing.T) {
		back, err := Retreat(s)
		require.NoError(t, err)
		assert.Equal(t, StepInvestors, back.Step)
		assert.Equal(t, 2, back.InvestorIndex)
	})

	t.Run("back through investors walks the index down to broker", func(t *testing.T) {
		back := s
		back.Step = StepInvestors
		back.InvestorIndex = 2
		for want := 1; want >= 0; want-- {
			back, err = Retreat(back)
			require.NoError(t, err)
			assert.Equal(t, want, back.InvestorIndex)
		}
		back, err = Retreat(back)
		require.NoError(t, err)
		assert.Equal(t, StepBroker, back.Step)
	})
}

func TestApprovalGate(t *testing.T) {
	s := stateWith("register_new", 0)
	s.Step = StepApproval

	for _, status := range []docmodels.Status{"", docmodels.StatusPending, docmodels.StatusRejected} {
		_, err := Advance(s, Gate{Approval: status})
		require.Error(t, err, "status %q", status)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
	next, err := Advance(s, Gate{Approval: docmodels.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, StepSummary, next.Step)
}

func TestPaymentGate(t *testing.T) {
	s := stateWith("register_new", 0)
	s.Step = StepPayment
	_, err := Advance(s, Gate{Approval: docmodels.StatusApproved})
	require.Error(t, err)

	next, err := Advance(s, Gate{Paid: true})
	require.NoError(t, err)
	assert.Equal(t, StepReceipt, next.Step)
}

func TestBackEdgesMirrorForwardEdges(t *testing.T) {
	cases := []struct {
		from Step
		want Step
	}{
		{StepApproval, StepVerification},
		{StepSummary, StepApproval},
		{StepPayment, StepSummary},
		{StepDocument, StepReceipt},
	}
	for _, tc := range cases {
		s := stateWith("register_new", 0)
		s.Step = tc.from
		back, err := Retreat(s)
		require.NoError(t, err)
		assert.Equal(t, tc.want, back.Step, "back from %s", tc.from)
	}

	for _, terminal := range []Step{StepBroker, StepReceipt} {
		s := stateWith("register_new", 0)
		s.Step = terminal
		_, err := Retreat(s)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "no back edge from %s", terminal)
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	s := stateWith(regmodels.RequestTypeCategorizeClients, 2)
	s.Step = StepInvestors
	_, err := Advance(s, Gate{})
	require.NoError(t, err)
	assert.Equal(t, StepInvestors, s.Step)
	assert.Equal(t, 0, s.InvestorIndex)
}
