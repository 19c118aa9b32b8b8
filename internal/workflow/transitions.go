package workflow

import (
	"fmt"

	docmodels "regflow/internal/document/models"
	dErrors "regflow/pkg/domain-errors"
)

// Gate carries the externally decided facts forward edges depend on.
type Gate struct {
	Approval docmodels.Status
	Paid     bool
}

type edge struct {
	from  Step
	guard func(State, Gate) bool
	apply func(State) State
}

func always(State, Gate) bool { return true }

func categorized(s State, _ Gate) bool { return s.Registration.RequiresCategorization() }

func moreInvestors(s State, _ Gate) bool {
	return s.InvestorIndex < s.Registration.InvestorCount()-1
}

func earlierInvestors(s State, _ Gate) bool { return s.InvestorIndex > 0 }

func approved(_ State, g Gate) bool { return g.Approval == docmodels.StatusApproved }

func paid(_ State, g Gate) bool { return g.Paid }

func goTo(step Step) func(State) State {
	return func(s State) State {
		s.Step = step
		return s
	}
}

func firstInvestor(s State) State {
	s.Step = StepInvestors
	s.InvestorIndex = 0
	return s
}

func lastInvestor(s State) State {
	s.Step = StepInvestors
	s.InvestorIndex = s.Registration.InvestorCount() - 1
	return s
}

func shiftInvestor(delta int) func(State) State {
	return func(s State) State {
		s.InvestorIndex += delta
		return s
	}
}

// forwardEdges are tried in order; the first edge whose guard holds wins.
// Field validation happens before Advance; these guards only route.
var forwardEdges = []edge{
	{StepBroker, categorized, firstInvestor},
	{StepBroker, always, goTo(StepVerification)},
	{StepInvestors, moreInvestors, shiftInvestor(1)},
	{StepInvestors, always, goTo(StepVerification)},
	{StepVerification, always, goTo(StepApproval)},
	{StepApproval, approved, goTo(StepSummary)},
	{StepSummary, always, goTo(StepPayment)},
	{StepPayment, paid, goTo(StepReceipt)},
	{StepReceipt, always, goTo(StepDocument)},
}

// backEdges mirror forwardEdges. Receipt has none: payment is irrevocable.
var backEdges = []edge{
	{StepInvestors, earlierInvestors, shiftInvestor(-1)},
	{StepInvestors, always, goTo(StepBroker)},
	{StepVerification, categorized, lastInvestor},
	{StepVerification, always, goTo(StepBroker)},
	{StepApproval, always, goTo(StepVerification)},
	{StepSummary, always, goTo(StepApproval)},
	{StepPayment, always, goTo(StepSummary)},
	{StepDocument, always, goTo(StepReceipt)},
}

// Advance returns the state after the forward edge out of s.Step.
func Advance(s State, g Gate) (State, error) {
	return follow(forwardEdges, s, g, "advance")
}

// Retreat returns the state after the back edge out of s.Step.
func Retreat(s State) (State, error) {
	return follow(backEdges, s, Gate{}, "go back")
}

func follow(edges []edge, s State, g Gate, verb string) (State, error) {
	matched := false
	for _, e := range edges {
		if e.from != s.Step {
			continue
		}
		matched = true
		if e.guard(s, g) {
			return e.apply(s), nil
		}
	}
	if matched {
		return s, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s from %s yet", verb, s.Step))
	}
	return s, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s from %s", verb, s.Step))
}
