package comps

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nicktill/ipedscomps/pkg/httpx"
	"github.com/nicktill/ipedscomps/pkg/logging"
)

// MissingCIPMessage is the 400 body for a lookup without a program code.
const MissingCIPMessage = "Missing required query param: cip"

// Handler serves the lookup endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, h.svc.Health())
}

// HandleComps handles GET /api/comps
// Query params:
//   - cip: program code, any common spelling (required)
//   - awlevel: integer award level (optional; ignored when not an integer)
func (h *Handler) HandleComps(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// HandleByAward handles GET /api/comps/by-award
// Same parameters as HandleComps; results are broken out by award level.
func (h *Handler) HandleByAward(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, grouped bool) {
	req := ParseRequest(r)
	req.Grouped = grouped

	payload, err := h.svc.Lookup(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.RespondRaw(w, http.StatusOK, payload)
}

// ParseRequest reads cip and awlevel from the query string. An awlevel that
// is not an integer is treated as absent.
func ParseRequest(r *http.Request) Request {
	query := r.URL.Query()
	req := Request{CIP: query.Get("cip")}
	if raw := strings.TrimSpace(query.Get("awlevel")); raw != "" {
		if level, err := strconv.Atoi(raw); err == nil {
			req.AwLevel = &level
		}
	}
	return req
}

// WriteError maps a lookup error to its HTTP response.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrMissingCIP) {
		httpx.RespondErrorString(w, http.StatusBadRequest, MissingCIPMessage)
		return
	}
	if errors.Is(r.Context().Err(), context.Canceled) {
		// Client went away; nobody is reading the response.
		logging.FromContext(r.Context()).Debugw("Lookup abandoned", "error", err)
		return
	}
	logging.FromContext(r.Context()).Errorw("Lookup failed", "path", r.URL.Path, "error", err)
	httpx.RespondError(w, http.StatusInternalServerError, err)
}
