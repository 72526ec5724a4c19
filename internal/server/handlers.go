package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/filter"
	"odds-arb-watcher/internal/pipeline"
	"odds-arb-watcher/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"cycle_id":  snap.CycleID,
	}
	if s.hub != nil {
		resp["websocket"] = s.hub.Metrics()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"cycle_id":      snap.CycleID,
		"status":        snap.Status,
		"started_at":    snap.StartedAt,
		"completed_at":  snap.CompletedAt,
		"sources":       snap.Sources,
		"fusion":        snap.Fusion,
		"markets":       snap.Markets,
		"records":       len(snap.Records),
		"opportunities": len(snap.Opportunities),
		"arbitrages":    snap.Arbitrages(),
		"counts":        filter.Count(snap.Records),
	})
}

// handleRecords serves the filtered, sorted record table.
// Query params: book, sport, min_ev, live, q, sort, dir, limit
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	snap := s.snapshot()
	view := pipeline.Project(snap, s.filter, s.analyzer, criteria)
	records := view.Records
	if limit := parseIntParam(r, "limit", 0); limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"cycle_id": snap.CycleID,
		"status":   snap.Status,
		"counts":   view.Counts,
		"count":    len(records),
		"records":  records,
	})
}

// handleArbitrage serves the ranked opportunities over the filtered records.
// Query params: book, sport, min_ev, live, q, only_arbitrage, limit
func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	snap := s.snapshot()
	view := pipeline.Project(snap, s.filter, s.analyzer, criteria)
	opps := view.Opportunities
	if parseBoolParam(r, "only_arbitrage") {
		opps = arbitrage.OnlyArbitrage(opps)
	}
	if limit := parseIntParam(r, "limit", 0); limit > 0 && limit < len(opps) {
		opps = opps[:limit]
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"cycle_id":      snap.CycleID,
		"status":        snap.Status,
		"count":         len(opps),
		"opportunities": opps,
	})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	records := s.filter.Allowed(snap.Records)
	opts := filter.OptionsOf(records)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"books":   opts.Books,
		"sports":  opts.Sports,
		"counts":  filter.Count(records),
		"columns": sortableColumns,
	})
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	if s.lookup == nil {
		s.respondError(w, http.StatusServiceUnavailable, "catalog lookup not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "outcomeID"))
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "outcome id is required", nil)
		return
	}

	info, err := s.lookup.LookupFresh(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "outcome not found", nil)
		return
	case err != nil:
		s.respondError(w, http.StatusBadGateway, "catalog lookup failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "refresh not available", nil)
		return
	}
	snap, err := s.refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, service.ErrBusy):
		s.respondError(w, http.StatusConflict, "refresh already in progress", err)
		return
	case err != nil:
		s.respondError(w, http.StatusBadGateway, "refresh failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, pipeline.Summarize(snap, s.opts.SummaryTop))
}

var sortableColumns = []filter.Column{
	filter.ColumnStatus, filter.ColumnBook, filter.ColumnGame, filter.ColumnMarket,
	filter.ColumnOutcomeType, filter.ColumnEV, filter.ColumnOdds, filter.ColumnProb,
	filter.ColumnSpread, filter.ColumnSport, filter.ColumnTime,
}

func parseCriteria(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	c := filter.Criteria{
		Book:   strings.TrimSpace(q.Get("book")),
		Sport:  strings.TrimSpace(q.Get("sport")),
		Search: q.Get("q"),
		Desc:   strings.EqualFold(q.Get("dir"), "desc"),
	}

	if raw := q.Get("min_ev"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, errors.New("min_ev must be a number")
		}
		c.MinEV = &v
	}
	switch strings.ToLower(q.Get("live")) {
	case "":
	case "true", "live", "1":
		v := true
		c.Live = &v
	case "false", "prematch", "0":
		v := false
		c.Live = &v
	default:
		return c, errors.New("live must be true or false")
	}

	col, err := filter.ParseColumn(q.Get("sort"))
	if err != nil {
		return c, err
	}
	c.SortBy = col
	return c, nil
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(param))
	if err != nil {
		return defaultValue
	}
	return value
}

func parseBoolParam(r *http.Request, param string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(param))
	return v
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Int("status", status).Msg(message)
	}
	s.respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
