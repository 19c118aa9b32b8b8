package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	docmodels "regflow/internal/document/models"
	"regflow/internal/review"
	"regflow/pkg/platform/httputil"
	"regflow/pkg/platform/middleware/admin"
	pstrings "regflow/pkg/platform/strings"
)

type ReviewService interface {
	List(ctx context.Context, statuses ...docmodels.Status) ([]*docmodels.Record, error)
	Get(ctx context.Context, id docmodels.ID) (*docmodels.Record, error)
	Decide(ctx context.Context, id docmodels.ID, d review.Decision) (*docmodels.Record, error)
}

// AdminHandler is the reviewer surface, guarded by the admin token.
type AdminHandler struct {
	review ReviewService
	token  string
	logger *slog.Logger
}

func NewAdminHandler(svc ReviewService, token string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{review: svc, token: token, logger: logger}
}

func (h *AdminHandler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(admin.RequireAdminToken(h.token, h.logger))
	ar.Get("/documents", h.handleList)
	ar.Get("/documents/{id}", h.handleGet)
	ar.Post("/documents/{id}/decision", h.handleDecide)

	r.Mount("/admin", ar)
}

// handleList accepts ?status=pending,approved.
func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []docmodels.Status
	for _, s := range pstrings.SplitList(r.URL.Query().Get("status")) {
		statuses = append(statuses, docmodels.Status(s))
	}
	recs, err := h.review.List(r.Context(), statuses...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if recs == nil {
		recs = []*docmodels.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": recs})
}

func (h *AdminHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.review.Get(r.Context(), docmodels.ID(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *AdminHandler) handleDecide(w http.ResponseWriter, r *http.Request) {
	var d review.Decision
	if err := httputil.DecodeJSON(r, &d); err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.review.Decide(r.Context(), docmodels.ID(chi.URLParam(r, "id")), d)
	if err != nil {
		h.logger.InfoContext(r.Context(), "review decision rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}
