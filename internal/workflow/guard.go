package workflow

import (
	"context"
	"log/slog"

	docmodels "regflow/internal/document/models"
	dErrors "regflow/pkg/domain-errors"
)

// SubmissionGuard keeps at most one active (pending or approved) document
// per owner. The store has no uniqueness constraint, so the check and the
// create run under a per-owner lock.
type SubmissionGuard struct {
	docs   DocumentStore
	locker Locker
	logger *slog.Logger
}

// Submission is the outcome of a guarded submit.
type Submission struct {
	DocumentID docmodels.ID
	Record     *docmodels.Record
	Existing   bool
}

func NewSubmissionGuard(docs DocumentStore, locker Locker, logger *slog.Logger) *SubmissionGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionGuard{docs: docs, locker: locker, logger: logger}
}

// EnsureNoDuplicate returns the oldest active record owned by owner, or nil.
// A failed query is surfaced; callers must not create on error.
func (g *SubmissionGuard) EnsureNoDuplicate(ctx context.Context, owner string) (*docmodels.Record, error) {
	recs, err := g.docs.Query(ctx, docmodels.Filter{OwnerID: owner, Statuses: docmodels.ActiveStatuses})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check for an existing request")
	}
	var oldest *docmodels.Record
	for _, rec := range recs {
		if rec == nil || !rec.Status.IsActive() {
			continue
		}
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rec
		}
	}
	return oldest, nil
}

// Submit creates the record built by build unless owner already has an active
// one, in which case that record is returned with Existing set.
func (g *SubmissionGuard) Submit(ctx context.Context, owner string, build func(context.Context) (*docmodels.Record, error)) (*Submission, error) {
	unlock, err := g.locker.Lock(ctx, "submission:"+owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire submission lock")
	}
	defer unlock()

	existing, err := g.EnsureNoDuplicate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		g.logger.InfoContext(ctx, "active request exists, redirecting",
			"document_id", existing.ID, "status", existing.Status)
		return &Submission{DocumentID: existing.ID, Record: existing, Existing: true}, nil
	}

	rec, err := build(ctx)
	if err != nil {
		return nil, err
	}
	rec.OwnerID = owner
	rec.Status = docmodels.StatusPending
	id, err := g.docs.Create(ctx, rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to submit request")
	}
	rec.ID = id
	return &Submission{DocumentID: id, Record: rec}, nil
}
