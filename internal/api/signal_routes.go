package api

import (
	"fmt"
	"net/http"

	"github.com/rawmove/swap-engine/internal/repository"
)

func (s *Server) handleSignalsToday(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history not available")
		return
	}

	recs, err := s.deps.Store.GetByDay(r.Context(), repository.TradingDayNow())
	if err != nil {
		fmt.Printf("Error fetching today's signals: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch signals")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSignalsByDay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history not available")
		return
	}

	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	recs, err := s.deps.Store.GetByDay(r.Context(), date)
	if err != nil {
		fmt.Printf("Error fetching signals for %s: %v\n", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch signals")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAllSignals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history not available")
		return
	}

	limit := parseLimit(r, 100)
	recs, err := s.deps.Store.GetAll(r.Context(), limit)
	if err != nil {
		fmt.Printf("Error fetching signals: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch signals")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSignalStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history not available")
		return
	}

	stats, err := s.deps.Store.GetStats(r.Context())
	if err != nil {
		fmt.Printf("Error fetching signal stats: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch signal stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
