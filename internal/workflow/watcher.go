package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	docmodels "regflow/internal/document/models"
	"regflow/internal/workflow/metrics"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/platform/sentinel"
)

// ApprovalStatus is the tri-state outcome of a review.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalUpdate is one delivered notification. Err is set instead of a
// status when the record vanished or the subscription broke.
type ApprovalUpdate struct {
	Status ApprovalStatus
	Record *docmodels.Record
	Err    error
}

// ApprovalWatcher maps document change notifications to approval statuses.
type ApprovalWatcher struct {
	docs    DocumentStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewApprovalWatcher(docs DocumentStore, logger *slog.Logger, m *metrics.Metrics) *ApprovalWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalWatcher{docs: docs, logger: logger, metrics: m}
}

// Subscribe invokes onChange for every notification on id until the returned
// cancel func runs. No callback is delivered after cancel returns.
func (w *ApprovalWatcher) Subscribe(ctx context.Context, id docmodels.ID, onChange func(ApprovalUpdate)) (func(), error) {
	var stopped atomic.Bool
	listener := func(rec *docmodels.Record, err error) {
		if stopped.Load() {
			return
		}
		update := w.mapUpdate(ctx, id, rec, err)
		w.metrics.IncApprovalUpdate(updateLabel(update))
		onChange(update)
	}
	cancel, err := w.docs.Subscribe(ctx, id, listener)
	if err != nil {
		stopped.Store(true)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to watch request status")
	}
	return func() {
		stopped.Store(true)
		cancel()
	}, nil
}

func (w *ApprovalWatcher) mapUpdate(ctx context.Context, id docmodels.ID, rec *docmodels.Record, err error) ApprovalUpdate {
	switch {
	case errors.Is(err, sentinel.ErrNotFound) || (err == nil && rec == nil):
		return ApprovalUpdate{Err: dErrors.New(dErrors.CodeNotFound, "request no longer exists")}
	case err != nil:
		w.logger.WarnContext(ctx, "approval subscription error", "document_id", id, "error", err)
		return ApprovalUpdate{Err: dErrors.Wrap(err, dErrors.CodeUnavailable, "request status unavailable")}
	}
	return ApprovalUpdate{Status: w.MapStatus(ctx, rec.Status), Record: rec}
}

// MapStatus folds the stored status into the tri-state gate. Paid implies a
// prior approval.
func (w *ApprovalWatcher) MapStatus(ctx context.Context, s docmodels.Status) ApprovalStatus {
	switch s {
	case docmodels.StatusApproved, docmodels.StatusPaid:
		return ApprovalApproved
	case docmodels.StatusRejected:
		return ApprovalRejected
	case docmodels.StatusPending, "":
		return ApprovalPending
	default:
		w.logger.WarnContext(ctx, "unknown document status, treating as pending", "status", s)
		return ApprovalPending
	}
}

func updateLabel(u ApprovalUpdate) string {
	if u.Err != nil {
		return string(dErrors.CodeOf(u.Err))
	}
	return string(u.Status)
}
