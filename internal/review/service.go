// Package review is the external reviewer role: it lists submitted
// registrations and records approve/reject decisions on them. The workflow
// only ever observes these decisions through its document subscription.
package review

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"regflow/internal/audit"
	docmodels "regflow/internal/document/models"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/platform/sentinel"
)

const maxNotesLength = 2000

type Store interface {
	Get(ctx context.Context, id docmodels.ID) (*docmodels.Record, error)
	Update(ctx context.Context, id docmodels.ID, patch docmodels.Patch) error
	Query(ctx context.Context, filter docmodels.Filter) ([]*docmodels.Record, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Decision is the reviewer's verdict on a pending request.
type Decision struct {
	Status     docmodels.Status `json:"status"`
	Notes      string           `json:"notes"`
	ReviewedBy string           `json:"reviewed_by"`
}

func (d Decision) validate() error {
	if d.Status != docmodels.StatusApproved && d.Status != docmodels.StatusRejected {
		return dErrors.New(dErrors.CodeBadRequest, "decision must be approved or rejected")
	}
	if strings.TrimSpace(d.ReviewedBy) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "reviewed_by is required")
	}
	if len(d.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeBadRequest, "notes are too long")
	}
	return nil
}

type Service struct {
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns records in the given statuses, oldest first. No statuses means
// pending only.
func (s *Service) List(ctx context.Context, statuses ...docmodels.Status) ([]*docmodels.Record, error) {
	if len(statuses) == 0 {
		statuses = []docmodels.Status{docmodels.StatusPending}
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status "+string(st))
		}
	}
	recs, err := s.store.Query(ctx, docmodels.Filter{Statuses: statuses})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list requests")
	}
	slices.SortFunc(recs, func(a, b *docmodels.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return recs, nil
}

func (s *Service) Get(ctx context.Context, id docmodels.ID) (*docmodels.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

// Decide approves or rejects a pending request.
func (s *Service) Decide(ctx context.Context, id docmodels.ID, d Decision) (*docmodels.Record, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if rec.Status != docmodels.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "request is already "+string(rec.Status))
	}

	notes := strings.TrimSpace(d.Notes)
	reviewer := strings.TrimSpace(d.ReviewedBy)
	if err := s.store.Update(ctx, id, docmodels.Patch{
		Status:      &d.Status,
		ReviewNotes: &notes,
		ReviewedBy:  &reviewer,
	}); err != nil {
		return nil, translate(err)
	}
	rec.Status = d.Status
	rec.ReviewNotes = notes
	rec.ReviewedBy = reviewer

	s.logger.InfoContext(ctx, "request reviewed",
		"document_id", id,
		"status", d.Status,
		"reviewed_by", reviewer,
	)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:     audit.ActionRequestReviewed,
			SessionID:  rec.OwnerID,
			DocumentID: id.String(),
			ActorID:    reviewer,
			Reason:     string(d.Status),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.ActionRequestReviewed, "error", err)
		}
	}
	return rec, nil
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "document store unavailable")
}
