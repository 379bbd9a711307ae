package export

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nicktill/ipedscomps/pkg/comps"
	"github.com/nicktill/ipedscomps/pkg/httpx"
	"github.com/nicktill/ipedscomps/pkg/logging"
)

// Handler serves lookup results as file downloads
type Handler struct {
	svc *comps.Service
}

// NewHandler creates a new export handler
func NewHandler(svc *comps.Service) *Handler {
	return &Handler{svc: svc}
}

// HandleCSV handles GET /api/comps.csv
func (h *Handler) HandleCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv")
}

// HandleExport handles GET /api/export
// Query params:
//   - cip: program code (required)
//   - awlevel: integer award level (optional)
//   - format: "json" or "csv" (default: csv)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}
	h.export(w, r, format)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format string) {
	logger := logging.FromContext(r.Context())

	// Exports always use the flat shape, which is also what gets cached
	payload, err := h.svc.Lookup(r.Context(), comps.ParseRequest(r))
	if err != nil {
		comps.WriteError(w, r, err)
		return
	}

	var resp comps.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("failed to decode lookup: %w", err))
		return
	}

	filename := "comps-" + strings.ReplaceAll(resp.CIP, ".", "") + "." + format
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	var result *ExportResult
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		result, err = ExportToJSON(w, &resp)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		result, err = ExportToCSV(w, &resp)
	}
	if err != nil {
		// Headers are already out; the body is truncated
		logger.Errorw("Export failed", "cip", resp.CIP, "format", format, "error", err)
		return
	}

	logger.Infow("Exported lookup", "cip", result.CIP, "format", result.Format, "institutions", result.InstitutionsExported)
}
