package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dexter-labs/tokentracker/internal/model"
	"github.com/go-chi/chi/v5"
)

// writeJSON encodes v as the response body, logging (never panicking) on a
// marshal failure — mirrors the teacher's handler error-envelope shape.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

type tokenView struct {
	*model.Token
	MVP       bool `json:"mvp,omitempty"`
	HolderMVP bool `json:"holder_mvp,omitempty"`
}

// handleTop serves GET /tokens/top?viewMode=...
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	view := model.ViewMode(r.URL.Query().Get("viewMode"))
	if view == "" {
		view = s.tracker.ViewMode()
	}

	tokens := s.tracker.Top10(view)
	mvp, _, _ := s.tracker.MVP(view)

	out := make([]tokenView, len(tokens))
	for i, tok := range tokens {
		out[i] = tokenView{Token: tok, MVP: tok.ContractAddress == mvp}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleHolder serves GET /tokens/holder
func (s *Server) handleHolder(w http.ResponseWriter, r *http.Request) {
	tokens := s.tracker.HolderList()
	holderMVP, _ := s.tracker.HolderMVP()

	out := make([]tokenView, len(tokens))
	for i, tok := range tokens {
		out[i] = tokenView{Token: tok, HolderMVP: tok.ContractAddress == holderMVP}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleAll serves GET /tokens/all
func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.All())
}

// handleCounts serves GET /tokens/counts
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.tracker.Counts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "counts_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

// handleBlacklistList serves GET /blacklist
func (s *Server) handleBlacklistList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.tracker.BlacklistList(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "blacklist_list_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type blacklistAddRequest struct {
	ContractAddress string `json:"contract_address"`
	Name            string `json:"name"`
}

// handleBlacklistAdd serves POST /blacklist
func (s *Server) handleBlacklistAdd(w http.ResponseWriter, r *http.Request) {
	var req blacklistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ContractAddress) == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "contract_address is required")
		return
	}
	if err := s.tracker.BlacklistAdd(r.Context(), req.ContractAddress, req.Name); err != nil {
		s.writeError(w, http.StatusInternalServerError, "blacklist_add_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "blacklisted"})
}

// handleBlacklistRemove serves DELETE /blacklist/{addr}
func (s *Server) handleBlacklistRemove(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	if err := s.tracker.BlacklistRemove(r.Context(), addr); err != nil {
		s.writeError(w, http.StatusInternalServerError, "blacklist_remove_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleGetMode serves GET /mode
func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.tracker.Mode())})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// handleSetMode serves POST /mode
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	m := model.Mode(req.Mode)
	if m != model.ModeDegen && m != model.ModeHolder {
		s.writeError(w, http.StatusBadRequest, "bad_request", "mode must be 'degen' or 'holder'")
		return
	}
	s.tracker.SetMode(m)
	s.writeJSON(w, http.StatusOK, map[string]string{"mode": string(m)})
}

// handleGetViewMode serves GET /view-mode
func (s *Server) handleGetViewMode(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"view_mode": string(s.tracker.ViewMode())})
}

type viewModeRequest struct {
	ViewMode string `json:"view_mode"`
}

var validViewModes = map[model.ViewMode]bool{
	model.ViewMode5m: true, model.ViewMode30m: true, model.ViewMode1h: true,
	model.ViewMode4h: true, model.ViewModeAllTime: true,
}

// handleSetViewMode serves POST /view-mode
func (s *Server) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var req viewModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	v := model.ViewMode(req.ViewMode)
	if !validViewModes[v] {
		s.writeError(w, http.StatusBadRequest, "bad_request", "unrecognized view_mode")
		return
	}
	s.tracker.SetViewMode(v)
	s.writeJSON(w, http.StatusOK, map[string]string{"view_mode": string(v)})
}

// handlePurge serves POST /purge
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Purge(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "purge_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

type mcCheckRequest struct {
	ContractAddress string `json:"contract_address"`
}

// handleMCCheck serves POST /test/mc-check — a diagnostic endpoint that
// reports the tracked snapshot for one address without mutating state.
func (s *Server) handleMCCheck(w http.ResponseWriter, r *http.Request) {
	var req mcCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	for _, tok := range s.tracker.All() {
		if tok.ContractAddress == req.ContractAddress {
			s.writeJSON(w, http.StatusOK, tok)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "not_found", "address not currently tracked")
}

// handleAlertTiersGet serves GET /alert-tiers
func (s *Server) handleAlertTiersGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.AlertTiers())
}

// handleAlertTiersSet serves POST /alert-tiers
func (s *Server) handleAlertTiersSet(w http.ResponseWriter, r *http.Request) {
	var tiers model.AlertTiers
	if err := json.NewDecoder(r.Body).Decode(&tiers); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.tracker.SetAlertTiers(r.Context(), tiers); err != nil {
		s.writeError(w, http.StatusInternalServerError, "alert_tiers_save_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tiers)
}
