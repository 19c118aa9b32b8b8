package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regflow/internal/card"
	"regflow/internal/payment"
	"regflow/internal/ratelimit"
	regmodels "regflow/internal/registration/models"
	"regflow/internal/workflow"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/platform/httputil"
	"regflow/pkg/platform/middleware/auth"
	"regflow/pkg/requestcontext"
)

// Controllers resolves the live controller for a session.
type Controllers interface {
	Get(ctx context.Context, sessionID string) (*workflow.Controller, error)
}

type LinkGenerator interface {
	Generate(ctx context.Context, details payment.LinkDetails, channel payment.Channel, recipient string) (*payment.Link, error)
}

// WorkflowHandler exposes one workflow controller per session. Every mutating
// route answers with the resulting view so the client never has to re-fetch.
type WorkflowHandler struct {
	controllers Controllers
	links       LinkGenerator
	linkLimit   *ratelimit.Window
	validator   auth.SessionValidator
	logger      *slog.Logger
}

// NewWorkflowHandler builds the handler; linkLimit caps payment link sends per
// session and may be nil.
func NewWorkflowHandler(
	controllers Controllers,
	links LinkGenerator,
	linkLimit *ratelimit.Window,
	validator auth.SessionValidator,
	logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		controllers: controllers,
		links:       links,
		linkLimit:   linkLimit,
		validator:   validator,
		logger:      logger,
	}
}

func (h *WorkflowHandler) Register(r chi.Router) {
	wf := chi.NewRouter()
	wf.Use(auth.RequireSession(h.validator, h.logger))
	wf.Get("/", h.handleView)
	wf.Post("/broker", h.handleSelectBroker)
	wf.Put("/investors/count", h.handleSetInvestorCount)
	wf.Post("/investors", h.handleSubmitInvestor)
	wf.Post("/verification", h.handleSubmitVerification)
	wf.Post("/approval/continue", h.simple((*workflow.Controller).ContinueFromApproval))
	wf.Post("/approval/refresh", h.simple((*workflow.Controller).RefreshApproval))
	wf.Post("/summary/confirm", h.simple((*workflow.Controller).ConfirmSummary))
	wf.Post("/payment", h.handlePay)
	wf.With(ratelimit.Limit(h.linkLimit, ratelimit.BySession, h.logger)).Post("/payment/link", h.handlePaymentLink)
	wf.Post("/document/view", h.simple((*workflow.Controller).ViewDocument))
	wf.Post("/back", h.simple((*workflow.Controller).Back))
	wf.Post("/new", h.simple((*workflow.Controller).StartNew))

	r.Mount("/workflow", wf)
}

type selectBrokerRequest struct {
	BrokerID      string `json:"broker_id"`
	RequestTypeID string `json:"request_type_id"`
}

type investorCountRequest struct {
	Count int `json:"count"`
}

type paymentLinkRequest struct {
	Channel   payment.Channel `json:"channel"`
	Recipient string          `json:"recipient"`
}

func (h *WorkflowHandler) controller(w http.ResponseWriter, r *http.Request) (*workflow.Controller, bool) {
	ctx := r.Context()
	c, err := h.controllers.Get(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load workflow", "error", err)
		httputil.WriteError(w, err)
		return nil, false
	}
	return c, true
}

// respond writes the view after op, or the mapped error.
func (h *WorkflowHandler) respond(w http.ResponseWriter, r *http.Request, c *workflow.Controller, err error) {
	if err != nil {
		ctx := r.Context()
		switch dErrors.CodeOf(err) {
		case dErrors.CodeUnavailable, dErrors.CodeTimeout, dErrors.CodeInternal:
			h.logger.ErrorContext(ctx, "workflow operation failed",
				"path", r.URL.Path,
				"step", c.View().Step,
				"error", err,
			)
		default:
			h.logger.InfoContext(ctx, "workflow operation rejected",
				"path", r.URL.Path,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.View())
}

func (h *WorkflowHandler) simple(op func(*workflow.Controller, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.controller(w, r)
		if !ok {
			return
		}
		h.respond(w, r, c, op(c, r.Context()))
	}
}

func (h *WorkflowHandler) handleView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.View())
}

func (h *WorkflowHandler) handleSelectBroker(w http.ResponseWriter, r *http.Request) {
	var req selectBrokerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c, c.SelectBroker(r.Context(), req.BrokerID, req.RequestTypeID))
}

func (h *WorkflowHandler) handleSetInvestorCount(w http.ResponseWriter, r *http.Request) {
	var req investorCountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c, c.SetInvestorCount(r.Context(), req.Count))
}

func (h *WorkflowHandler) handleSubmitInvestor(w http.ResponseWriter, r *http.Request) {
	var req regmodels.Investor
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c, c.SubmitInvestor(r.Context(), req))
}

func (h *WorkflowHandler) handleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req regmodels.Verification
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c, c.SubmitVerification(r.Context(), req))
}

func (h *WorkflowHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req card.Details
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, c, c.Pay(r.Context(), req))
}

// handlePaymentLink shares the current cost summary as a payable link.
func (h *WorkflowHandler) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req paymentLinkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	view := c.View()
	if view.Step != workflow.StepPayment || view.Summary == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidState, "payment links are only available at the payment step"))
		return
	}
	link, err := h.links.Generate(r.Context(), payment.LinkDetails{
		Description: view.Summary.Description,
		Amount:      view.Summary.Amount,
		Currency:    view.Summary.Currency,
		Reference:   view.Summary.Reference,
	}, req.Channel, req.Recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, link)
}
