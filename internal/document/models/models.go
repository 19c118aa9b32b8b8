package models

import (
	"time"

	regmodels "regflow/internal/registration/models"
)

// ID is the opaque identifier the document store assigns to a record.
type ID string

func (id ID) String() string { return string(id) }

// Status is the review state of a submitted registration.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// IsActive reports whether a record blocks new submissions for its owner.
// Paid and rejected records are terminal.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// ActiveStatuses are the statuses the submission guard treats as blocking.
var ActiveStatuses = []Status{StatusPending, StatusApproved}

// Record is the externally stored representation of a submitted registration.
type Record struct {
	ID                 ID               `json:"id"`
	OwnerID            string           `json:"owner_id"`
	Registration       regmodels.Record `json:"registration"`
	LicenseNumber      string           `json:"license_number"`
	RegulatorNumber    string           `json:"regulator_number"`
	Status             Status           `json:"status"`
	ReviewNotes        string           `json:"review_notes,omitempty"`
	ReviewedBy         string           `json:"reviewed_by,omitempty"`
	PaymentCompletedAt *time.Time       `json:"payment_completed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Registration = r.Registration.Clone()
	if r.PaymentCompletedAt != nil {
		t := *r.PaymentCompletedAt
		out.PaymentCompletedAt = &t
	}
	return &out
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Status             *Status
	ReviewNotes        *string
	ReviewedBy         *string
	PaymentCompletedAt *time.Time
}

// Apply writes the set fields of p onto r.
func (p Patch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ReviewNotes != nil {
		r.ReviewNotes = *p.ReviewNotes
	}
	if p.ReviewedBy != nil {
		r.ReviewedBy = *p.ReviewedBy
	}
	if p.PaymentCompletedAt != nil {
		t := *p.PaymentCompletedAt
		r.PaymentCompletedAt = &t
	}
}

// Filter narrows a query. An empty OwnerID matches every owner; empty Statuses
// match every status.
type Filter struct {
	OwnerID  string
	Statuses []Status
}

// Matches reports whether r satisfies f.
func (f Filter) Matches(r *Record) bool {
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

// Listener receives each snapshot of a watched record. err is
// sentinel.ErrNotFound when the record does not exist.
type Listener func(rec *Record, err error)

// CancelFunc tears down a subscription. It is safe to call more than once.
type CancelFunc func()
