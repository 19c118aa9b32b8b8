package workflow

import (
	docmodels "regflow/internal/document/models"
	"regflow/internal/payment"
	regmodels "regflow/internal/registration/models"
)

// Step is one stage of the registration sequence.
type Step string

const (
	StepBroker       Step = "broker"
	StepInvestors    Step = "investors"
	StepVerification Step = "verification"
	StepApproval     Step = "approval"
	StepSummary      Step = "summary"
	StepPayment      Step = "payment"
	StepReceipt      Step = "receipt"
	StepDocument     Step = "document"
)

// Issuance is the numbering assigned at submission.
type Issuance struct {
	LicenseNumber   string `json:"license_number"`
	RegulatorNumber string `json:"regulator_number"`
}

// State is everything the controller owns for one session. Only the Snapshot
// part is persisted; receipts and summaries are rebuilt or discarded.
type State struct {
	Step          Step
	Registration  regmodels.Record
	InvestorIndex int
	DocumentID    docmodels.ID
	Issuance      *Issuance
	Summary       *payment.Summary
	Receipt       *payment.Receipt
}

// Snapshot is the persisted subset of State.
type Snapshot struct {
	Registration  regmodels.Record `json:"registration"`
	Step          Step             `json:"current_step"`
	InvestorIndex int              `json:"investor_index"`
	DocumentID    docmodels.ID     `json:"document_id,omitempty"`
}

func freshState() State {
	return State{Step: StepBroker}
}

func (s State) clone() State {
	out := s
	out.Registration = s.Registration.Clone()
	if s.Issuance != nil {
		v := *s.Issuance
		out.Issuance = &v
	}
	if s.Summary != nil {
		v := *s.Summary
		out.Summary = &v
	}
	if s.Receipt != nil {
		v := *s.Receipt
		out.Receipt = &v
	}
	return out
}

func (s State) snapshot() Snapshot {
	return Snapshot{
		Registration:  s.Registration.Clone(),
		Step:          s.Step,
		InvestorIndex: s.InvestorIndex,
		DocumentID:    s.DocumentID,
	}
}
