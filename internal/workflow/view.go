package workflow

import (
	docmodels "regflow/internal/document/models"
	"regflow/internal/payment"
	regmodels "regflow/internal/registration/models"
	dErrors "regflow/pkg/domain-errors"
)

// View is the renderable snapshot of a controller.
type View struct {
	SessionID     string           `json:"session_id"`
	Step          Step             `json:"step"`
	Registration  regmodels.Record `json:"registration"`
	InvestorIndex int              `json:"investor_index"`
	DocumentID    docmodels.ID     `json:"document_id,omitempty"`
	ActiveRequest docmodels.ID     `json:"active_request,omitempty"`
	Notice        Notice           `json:"notice,omitempty"`
	Approval      *ApprovalView    `json:"approval,omitempty"`
	Issuance      *Issuance        `json:"issuance,omitempty"`
	Summary       *payment.Summary `json:"summary,omitempty"`
	Receipt       *payment.Receipt `json:"receipt,omitempty"`
	CanGoBack     bool             `json:"can_go_back"`
}

// ApprovalView is present only on the approval step. Error holds an error
// code ("not_found", "unavailable") when the status could not be observed.
type ApprovalView struct {
	Status      ApprovalStatus `json:"status,omitempty"`
	Error       string         `json:"error,omitempty"`
	ReviewNotes string         `json:"review_notes,omitempty"`
}

func (c *Controller) View() View {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	st := c.state.clone()
	v := View{
		SessionID:     c.sessionID,
		Step:          st.Step,
		Registration:  st.Registration,
		InvestorIndex: st.InvestorIndex,
		DocumentID:    st.DocumentID,
		Notice:        c.notice,
		Issuance:      st.Issuance,
		Summary:       st.Summary,
		Receipt:       st.Receipt,
	}
	if _, err := Retreat(st); err == nil {
		v.CanGoBack = true
	}
	if st.DocumentID != "" && c.docStatus.IsActive() {
		v.ActiveRequest = st.DocumentID
	}
	if st.Step == StepApproval {
		av := &ApprovalView{Status: c.watch.status}
		if c.watch.err != nil {
			av.Status = ""
			av.Error = string(dErrors.CodeOf(c.watch.err))
		}
		if c.watch.record != nil {
			av.ReviewNotes = c.watch.record.ReviewNotes
		}
		v.Approval = av
	}
	return v
}
