package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/barkbook/internal/core"
	"github.com/JonMunkholm/barkbook/internal/logging"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	org := core.OrganizationFromContext(r.Context())
	runs, err := s.service.ListRuns(r.Context(), org, parseIntParam(r, "limit", 0))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunErrors exports a run's failed rows as CSV.
func (s *Server) handleRunErrors(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "import_"+run.ID+"_errors.csv"))
	if err := core.WriteFailuresCSV(w, run); err != nil {
		// Headers are gone; all that is left is to log it.
		logging.FromContext(r.Context()).Error("write failures csv", "run_id", run.ID, "error", err)
	}
}

func (s *Server) lookupRun(r *http.Request) (*core.ImportRun, error) {
	org := core.OrganizationFromContext(r.Context())
	return s.service.GetRun(r.Context(), org, chi.URLParam(r, "runID"))
}

// parseIntParam parses a positive integer query parameter, falling back to
// defaultVal when absent or invalid.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	i, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
