package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regflow/internal/card"
	"regflow/internal/ratelimit"
	regmodels "regflow/internal/registration/models"
	"regflow/pkg/platform/httputil"
	"regflow/pkg/requestcontext"
)

// CatalogHandler serves static reference data and stateless card feedback.
type CatalogHandler struct {
	inspectLimit *ratelimit.Window
	logger       *slog.Logger
}

func NewCatalogHandler(inspectLimit *ratelimit.Window, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{inspectLimit: inspectLimit, logger: logger}
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/catalog/brokers", h.handleBrokers)
	r.Get("/catalog/request-types", h.handleRequestTypes)
	r.With(ratelimit.Limit(h.inspectLimit, ratelimit.ByClientIP, h.logger)).Post("/cards/inspect", h.handleInspectCard)
}

func (h *CatalogHandler) handleBrokers(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"brokers": regmodels.Brokers()})
}

func (h *CatalogHandler) handleRequestTypes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"request_types": regmodels.RequestTypes()})
}

type inspectCardResponse struct {
	card.Inspection
	Errors map[string]string `json:"errors,omitempty"`
}

// handleInspectCard reports errors only for fields the user has started typing.
func (h *CatalogHandler) handleInspectCard(w http.ResponseWriter, r *http.Request) {
	var details card.Details
	if err := httputil.DecodeJSON(r, &details); err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := inspectCardResponse{Inspection: card.Inspect(details.Number, details.Expiry)}
	typed := map[card.Field]string{
		card.FieldNumber:   details.Number,
		card.FieldName:     details.Name,
		card.FieldExpiry:   details.Expiry,
		card.FieldCVV:      details.CVV,
		card.FieldFullName: details.FullName,
		card.FieldEmail:    details.Email,
		card.FieldPhone:    details.Phone,
	}
	for field, msg := range card.Validate(details, requestcontext.Now(r.Context())) {
		if typed[field] == "" {
			continue
		}
		if resp.Errors == nil {
			resp.Errors = make(map[string]string)
		}
		resp.Errors[string(field)] = msg
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
