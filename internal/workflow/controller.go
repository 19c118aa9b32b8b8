package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"regflow/internal/audit"
	"regflow/internal/card"
	docmodels "regflow/internal/document/models"
	"regflow/internal/payment"
	regmodels "regflow/internal/registration/models"
	"regflow/internal/workflow/metrics"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/requestcontext"
)

// Notice is a one-shot message attached to the view after a transition.
type Notice string

const NoticeExistingRequest Notice = "existing_request"

// Deps are the collaborators every controller needs.
type Deps struct {
	Docs    DocumentStore
	States  StateStore
	Charger Charger
	Locker  Locker
}

// Controller owns the workflow state for one session. Transitions are
// serialized; approval notifications only update the cached gate value and
// never move the user.
type Controller struct {
	sessionID string
	docs      DocumentStore
	states    StateStore
	charger   Charger
	guard     *SubmissionGuard
	watcher   *ApprovalWatcher
	issuer    NumberIssuer
	fees      payment.FeeSchedule
	auditor   AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	// mu is held for the whole of a transition.
	mu      sync.Mutex
	resumed bool
	flight  singleflight.Group

	// dataMu guards everything below; held only briefly.
	dataMu    sync.Mutex
	state     State
	notice    Notice
	docStatus docmodels.Status
	watch     watchState
	closed    bool
}

type watchState struct {
	gen    uint64
	cancel func()
	status ApprovalStatus
	record *docmodels.Record
	err    error
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(c *Controller) {
		c.auditor = p
	}
}

func WithIssuer(issuer NumberIssuer) Option {
	return func(c *Controller) {
		if issuer != nil {
			c.issuer = issuer
		}
	}
}

func WithFees(fees payment.FeeSchedule) Option {
	return func(c *Controller) {
		c.fees = fees
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewController builds an unresumed controller. Call Resume before any
// other operation.
func NewController(sessionID string, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		docs:      deps.Docs,
		states:    deps.States,
		charger:   deps.Charger,
		issuer:    RandomIssuer{},
		fees:      payment.DefaultFees(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("regflow/workflow"),
		state:     freshState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.guard = NewSubmissionGuard(deps.Docs, deps.Locker, c.logger)
	c.watcher = NewApprovalWatcher(deps.Docs, c.logger, c.metrics)
	return c
}

func (c *Controller) SessionID() string { return c.sessionID }

// Resume reconciles the persisted snapshot with the document store. It runs
// once; lookup and load failures start a fresh session.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumed {
		return dErrors.New(dErrors.CodeInvalidState, "session already resumed")
	}
	c.resumed = true

	ctx, span := c.startSpan(ctx, "workflow.Resume")
	defer span.End()

	snap, err := c.states.Load(ctx, c.sessionID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c.startFresh(ctx, "fresh", "")
		return nil
	case err != nil:
		c.logger.WarnContext(ctx, "failed to load workflow state, starting fresh",
			"session_id", c.sessionID, "error", err)
		c.startFresh(ctx, "load_failed", "")
		return nil
	case snap.DocumentID == "":
		c.discard(ctx, "no_active_request")
		return nil
	}

	span.SetAttributes(attribute.String("document_id", string(snap.DocumentID)))
	rec, err := c.docs.Get(ctx, snap.DocumentID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c.discard(ctx, "request_missing")
		return nil
	case err != nil:
		c.logger.WarnContext(ctx, "failed to look up saved request, starting fresh",
			"session_id", c.sessionID, "document_id", snap.DocumentID, "error", err)
		c.discard(ctx, "lookup_failed")
		return nil
	case !rec.Status.IsActive():
		c.discard(ctx, "request_"+string(rec.Status))
		return nil
	}

	next := freshState()
	next.Step = StepApproval
	next.Registration = rec.Registration.Clone()
	next.DocumentID = rec.ID
	next.Issuance = &Issuance{LicenseNumber: rec.LicenseNumber, RegulatorNumber: rec.RegulatorNumber}
	c.setDocStatus(rec.Status)
	c.commit(ctx, next)
	c.metrics.IncResume("resumed")
	c.emit(ctx, audit.ActionSessionResumed, rec.ID, "")
	return nil
}

func (c *Controller) startFresh(ctx context.Context, outcome, reason string) {
	c.metrics.IncResume(outcome)
	c.emit(ctx, audit.ActionSessionStarted, "", reason)
}

func (c *Controller) discard(ctx context.Context, reason string) {
	if err := c.states.Clear(ctx, c.sessionID); err != nil {
		c.logger.WarnContext(ctx, "failed to clear workflow state", "session_id", c.sessionID, "error", err)
	}
	c.reset()
	c.metrics.IncResume("discarded")
	c.emit(ctx, audit.ActionSessionDiscarded, "", reason)
}

// SelectBroker records the broker and request type and leaves the broker step.
func (c *Controller) SelectBroker(ctx context.Context, brokerID, requestTypeID string) error {
	return c.transition(ctx, StepBroker, func(ctx context.Context, st State) (State, error) {
		if err := invalid(regmodels.ValidateBrokerSelection(brokerID, requestTypeID)); err != nil {
			return st, err
		}
		st.Registration.BrokerID = brokerID
		st.Registration.RequestTypeID = requestTypeID
		if st.Registration.RequiresCategorization() {
			if len(st.Registration.Investors) == 0 {
				st.Registration.ResizeInvestors(st.Registration.InvestorCount())
			}
		} else {
			st.Registration.Investors = nil
			st.Registration.NumberOfInvestors = 1
		}
		return Advance(st, Gate{})
	})
}

// SetInvestorCount resizes the investor list without leaving the step.
func (c *Controller) SetInvestorCount(ctx context.Context, n int) error {
	return c.transition(ctx, StepInvestors, func(ctx context.Context, st State) (State, error) {
		if err := invalid(regmodels.ValidateInvestorCount(n)); err != nil {
			return st, err
		}
		st.Registration.ResizeInvestors(n)
		if st.InvestorIndex >= n {
			st.InvestorIndex = n - 1
		}
		return st, nil
	})
}

// SubmitInvestor stores the investor at the current index and moves on.
func (c *Controller) SubmitInvestor(ctx context.Context, inv regmodels.Investor) error {
	return c.transition(ctx, StepInvestors, func(ctx context.Context, st State) (State, error) {
		if err := invalid(regmodels.ValidateInvestor(inv)); err != nil {
			return st, err
		}
		if st.InvestorIndex >= len(st.Registration.Investors) {
			st.Registration.ResizeInvestors(st.InvestorIndex + 1)
		}
		st.Registration.Investors[st.InvestorIndex] = inv
		return Advance(st, Gate{})
	})
}

// SubmitVerification submits the registration for review. Concurrent calls
// share one execution, and an already active request is reused instead of
// creating a second one.
func (c *Controller) SubmitVerification(ctx context.Context, v regmodels.Verification) error {
	_, err, _ := c.flight.Do("submit", func() (any, error) {
		return nil, c.submitVerification(ctx, v)
	})
	return err
}

func (c *Controller) submitVerification(ctx context.Context, v regmodels.Verification) error {
	var sub *Submission
	err := c.transition(ctx, StepVerification, func(ctx context.Context, st State) (State, error) {
		ctx, span := c.startSpan(ctx, "workflow.SubmitVerification")
		defer span.End()

		v = regmodels.NormalizeVerification(v)
		if err := invalid(regmodels.ValidateVerification(v)); err != nil {
			return st, err
		}
		reg := st.Registration.Clone()
		reg.Verification = &v

		var err error
		sub, err = c.guard.Submit(ctx, c.sessionID, func(ctx context.Context) (*docmodels.Record, error) {
			license, regulator, err := c.issuer.Issue(ctx)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue registration numbers")
			}
			return &docmodels.Record{
				Registration:    reg.Clone(),
				LicenseNumber:   license,
				RegulatorNumber: regulator,
			}, nil
		})
		if err != nil {
			recordSpanError(span, err)
			return st, err
		}
		span.SetAttributes(
			attribute.String("document_id", string(sub.DocumentID)),
			attribute.Bool("existing", sub.Existing),
		)

		if sub.Existing {
			st.Registration = sub.Record.Registration.Clone()
		} else {
			st.Registration = reg
		}
		st.DocumentID = sub.DocumentID
		st.Issuance = &Issuance{LicenseNumber: sub.Record.LicenseNumber, RegulatorNumber: sub.Record.RegulatorNumber}
		c.setDocStatus(sub.Record.Status)
		return Advance(st, Gate{})
	})
	if err != nil {
		return err
	}

	if sub.Existing {
		c.setNotice(NoticeExistingRequest)
		c.metrics.IncDuplicateRedirect()
		c.emit(ctx, audit.ActionRequestRedirected, sub.DocumentID, "")
		return nil
	}
	c.metrics.IncSubmissionCreated()
	c.emit(ctx, audit.ActionRequestSubmitted, sub.DocumentID, "")
	return nil
}

// ContinueFromApproval passes the approval gate once the watched status is
// approved and prices the request.
func (c *Controller) ContinueFromApproval(ctx context.Context) error {
	return c.transition(ctx, StepApproval, func(ctx context.Context, st State) (State, error) {
		status, err := c.approval()
		if err != nil {
			return st, err
		}
		if status != ApprovalApproved {
			return st, dErrors.New(dErrors.CodeInvalidState, "request is "+string(status))
		}
		next, err := Advance(st, Gate{Approval: docmodels.StatusApproved})
		if err != nil {
			return st, err
		}
		summary := c.fees.Summarize(next.Registration, requestcontext.Now(ctx))
		next.Summary = &summary
		return next, nil
	})
}

// RefreshApproval re-establishes a broken approval subscription.
func (c *Controller) RefreshApproval(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	st := c.current()
	if st.Step != StepApproval {
		return dErrors.New(dErrors.CodeInvalidState, "not waiting for approval")
	}
	c.startWatch(ctx, st.DocumentID)
	_, err := c.approval()
	return err
}

func (c *Controller) ConfirmSummary(ctx context.Context) error {
	return c.transition(ctx, StepSummary, func(ctx context.Context, st State) (State, error) {
		return Advance(st, Gate{})
	})
}

// Pay validates the card, charges the fee and marks the request paid. The
// charge ignores cancellation of ctx and concurrent calls share one charge.
func (c *Controller) Pay(ctx context.Context, details card.Details) error {
	_, err, _ := c.flight.Do("pay", func() (any, error) {
		return nil, c.pay(ctx, details)
	})
	return err
}

func (c *Controller) pay(ctx context.Context, details card.Details) error {
	var charge *payment.Charge
	err := c.transition(ctx, StepPayment, func(ctx context.Context, st State) (State, error) {
		ctx, span := c.startSpan(ctx, "workflow.Pay")
		defer span.End()

		now := requestcontext.Now(ctx)
		if err := invalid(card.Validate(details, now)); err != nil {
			return st, err
		}
		if st.Summary == nil {
			summary := c.fees.Summarize(st.Registration, now)
			st.Summary = &summary
		}

		chargeCtx := context.WithoutCancel(ctx)
		var err error
		charge, err = c.charger.Charge(chargeCtx, payment.ChargeRequest{
			IdempotencyKey: string(st.DocumentID),
			Card:           details,
			Amount:         st.Summary.Amount,
			Currency:       st.Summary.Currency,
			Reference:      st.Summary.Reference,
		})
		if err != nil {
			recordSpanError(span, err)
			var coded *dErrors.Error
			if errors.As(err, &coded) {
				return st, err
			}
			return st, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment failed")
		}
		span.SetAttributes(attribute.String("transaction_id", charge.TransactionID))

		if err := c.markPaid(chargeCtx, st.DocumentID); err != nil {
			recordSpanError(span, err)
			return st, err
		}
		c.setDocStatus(docmodels.StatusPaid)

		next, err := Advance(st, Gate{Paid: true})
		if err != nil {
			return st, err
		}
		receipt := payment.NewReceipt(charge, *st.Summary, details)
		next.Receipt = &receipt
		return next, nil
	})
	if err != nil {
		return err
	}
	c.emit(ctx, audit.ActionPaymentCompleted, c.current().DocumentID, charge.TransactionID)
	return nil
}

// markPaid writes status=paid unless the record already carries it.
func (c *Controller) markPaid(ctx context.Context, id docmodels.ID) error {
	rec, err := c.docs.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request no longer exists")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read request")
	}
	if rec.Status == docmodels.StatusPaid {
		return nil
	}
	status := docmodels.StatusPaid
	at := requestcontext.Now(ctx)
	if err := c.docs.Update(ctx, id, docmodels.Patch{Status: &status, PaymentCompletedAt: &at}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record payment")
	}
	return nil
}

// ViewDocument opens the issued registration document.
func (c *Controller) ViewDocument(ctx context.Context) error {
	return c.transition(ctx, StepReceipt, func(ctx context.Context, st State) (State, error) {
		if st.Issuance == nil && st.DocumentID != "" {
			rec, err := c.docs.Get(ctx, st.DocumentID)
			if err != nil {
				return st, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load request")
			}
			st.Issuance = &Issuance{LicenseNumber: rec.LicenseNumber, RegulatorNumber: rec.RegulatorNumber}
		}
		return Advance(st, Gate{})
	})
}

// Back follows the back edge of the current step.
func (c *Controller) Back(ctx context.Context) error {
	return c.transition(ctx, "", func(ctx context.Context, st State) (State, error) {
		return Retreat(st)
	})
}

// StartNew discards the session and returns to the broker step. It is refused
// while a pending or approved request is still in progress.
func (c *Controller) StartNew(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	st := c.current()
	if err := c.checkCanStartNew(ctx, st); err != nil {
		return err
	}
	if err := c.states.Clear(ctx, c.sessionID); err != nil {
		c.logger.WarnContext(ctx, "failed to clear workflow state", "session_id", c.sessionID, "error", err)
	}
	c.stopWatch()
	c.reset()
	c.metrics.IncTransition(string(st.Step), "reset")
	c.emit(ctx, audit.ActionWorkflowReset, st.DocumentID, string(st.Step))
	return nil
}

func (c *Controller) checkCanStartNew(ctx context.Context, st State) error {
	if st.Step == StepReceipt || st.Step == StepDocument || st.DocumentID == "" {
		return nil
	}
	if st.Step == StepApproval {
		status, err := c.approval()
		if dErrors.HasCode(err, dErrors.CodeNotFound) || (err == nil && status == ApprovalRejected) {
			return nil
		}
	}
	rec, err := c.docs.Get(ctx, st.DocumentID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check request status")
	case rec.Status.IsActive():
		return dErrors.New(dErrors.CodeInvalidState, "a request is already under review")
	}
	return nil
}

// Close tears down the approval subscription. Later operations fail.
func (c *Controller) Close() {
	c.dataMu.Lock()
	c.closed = true
	c.dataMu.Unlock()
	c.stopWatch()
}

// transition runs fn against a copy of the state when the controller sits on
// from (any step when from is empty). The state is replaced and persisted only
// when fn succeeds.
func (c *Controller) transition(ctx context.Context, from Step, fn func(context.Context, State) (State, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	st := c.current()
	if from != "" && st.Step != from {
		c.metrics.IncTransition(string(st.Step), "wrong_step")
		return dErrors.New(dErrors.CodeInvalidState, "operation not allowed on step "+string(st.Step))
	}
	next, err := fn(ctx, st.clone())
	if err != nil {
		c.metrics.IncTransition(string(st.Step), outcomeOf(err))
		return err
	}
	c.commit(ctx, next)
	c.metrics.IncTransition(string(st.Step), "ok")
	return nil
}

func (c *Controller) ready() error {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if c.closed {
		return dErrors.New(dErrors.CodeInvalidState, "session closed")
	}
	if !c.resumed {
		return dErrors.New(dErrors.CodeInvalidState, "session not resumed")
	}
	return nil
}

// commit replaces the state, persists it and moves the approval subscription
// along with the step.
func (c *Controller) commit(ctx context.Context, next State) {
	c.dataMu.Lock()
	prev := c.state
	c.state = next
	c.notice = ""
	c.dataMu.Unlock()

	if err := c.states.Save(ctx, c.sessionID, next.snapshot()); err != nil {
		c.logger.WarnContext(ctx, "failed to persist workflow state",
			"session_id", c.sessionID, "step", next.Step, "error", err)
	}

	leaving := prev.Step == StepApproval && next.Step != StepApproval
	entering := next.Step == StepApproval && (prev.Step != StepApproval || prev.DocumentID != next.DocumentID)
	if leaving {
		c.stopWatch()
	}
	if entering {
		c.startWatch(ctx, next.DocumentID)
	}
}

func (c *Controller) reset() {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.state = freshState()
	c.notice = ""
	c.docStatus = ""
}

func (c *Controller) startWatch(ctx context.Context, id docmodels.ID) {
	c.dataMu.Lock()
	c.watch.gen++
	gen := c.watch.gen
	old := c.watch.cancel
	c.watch = watchState{gen: gen, status: ApprovalPending}
	c.dataMu.Unlock()
	if old != nil {
		old()
	}

	cancel, err := c.watcher.Subscribe(context.WithoutCancel(ctx), id, func(u ApprovalUpdate) {
		c.onApproval(gen, u)
	})

	if err != nil {
		c.logger.WarnContext(ctx, "failed to watch request", "document_id", id, "error", err)
		c.dataMu.Lock()
		if c.watch.gen == gen {
			c.watch.err = err
		}
		c.dataMu.Unlock()
		return
	}
	c.dataMu.Lock()
	stale := c.watch.gen != gen || c.closed
	if !stale {
		c.watch.cancel = cancel
	}
	c.dataMu.Unlock()
	if stale {
		cancel()
	}
}

func (c *Controller) stopWatch() {
	c.dataMu.Lock()
	c.watch.gen++
	cancel := c.watch.cancel
	c.watch = watchState{gen: c.watch.gen}
	c.dataMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) onApproval(gen uint64, u ApprovalUpdate) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if gen != c.watch.gen {
		return
	}
	c.watch.err = u.Err
	if u.Err != nil {
		return
	}
	c.watch.status = u.Status
	c.watch.record = u.Record
	if u.Record != nil {
		c.docStatus = u.Record.Status
	}
}

func (c *Controller) approval() (ApprovalStatus, error) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.watch.status, c.watch.err
}

func (c *Controller) current() State {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.state.clone()
}

func (c *Controller) setNotice(n Notice) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.notice = n
}

func (c *Controller) setDocStatus(s docmodels.Status) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.docStatus = s
}

func (c *Controller) emit(ctx context.Context, action audit.Action, docID docmodels.ID, reason string) {
	if c.auditor == nil {
		return
	}
	step := string(c.current().Step)
	err := c.auditor.Emit(ctx, audit.Event{
		Action:     action,
		SessionID:  c.sessionID,
		DocumentID: string(docID),
		Step:       step,
		Reason:     reason,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

func (c *Controller) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session_id", c.sessionID)))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func outcomeOf(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "invalid"
	}
	return string(dErrors.CodeOf(err))
}
