package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"idledata/pkg/market"
	"idledata/pkg/overlay"
)

type overlayResponse struct {
	Selection overlay.Selection `json:"selection"`
	State     string            `json:"state,omitempty"`
	Error     string            `json:"error,omitempty"`
	market.Summary
}

// handleOverlay serves GET /overlay/item/{id}?tier=T with the rows and
// charts of the item's listings history. The request's bearer token is
// used as the API key.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	sel := overlay.Selection{ItemID: chi.URLParam(r, "id")}
	tier, err := strconv.Atoi(r.URL.Query().Get("tier"))
	if err != nil || tier < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tier must be a non-negative integer"})
		return
	}
	sel.Tier = tier

	summary, err := overlay.Load(r.Context(), s.newClient(tokenFrom(r.Context())), sel, s.location)
	if err != nil {
		s.logger.WithError(err).WarnWithFields("Overlay fetch failed", map[string]interface{}{
			"item": sel.ItemID,
			"tier": sel.Tier,
		})
		writeJSON(w, http.StatusBadGateway, overlayResponse{
			Selection: sel,
			State:     market.StateError,
			Error:     err.Error(),
			Summary:   market.StateSummary(market.StateError),
		})
		return
	}

	writeJSON(w, http.StatusOK, overlayResponse{Selection: sel, Summary: summary})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
