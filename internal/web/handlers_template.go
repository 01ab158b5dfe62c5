package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/barkbook/internal/core"
)

// handleTemplate serves the example import file.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	body := core.TemplateCSV()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.TemplateFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
