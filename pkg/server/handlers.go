package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/httpx"
	"github.com/nicktill/ipedscomps/pkg/logging"
	"github.com/nicktill/ipedscomps/pkg/server/monitor"
)

// Version is reported by /api/status.
const Version = "1.0.0"

var startTime = time.Now()

// CacheUsage describes the result cache.
type CacheUsage struct {
	Entries   int    `json:"entries"`
	Max       int    `json:"max"`
	Backend   string `json:"backend"`
	SizeBytes uint64 `json:"size_bytes"`
}

// DatasetUsage describes the files behind the registry.
type DatasetUsage struct {
	Years        []int `json:"years"`
	Institutions int   `json:"institutions"`
	Files        int   `json:"files"`
	UsedBytes    int64 `json:"used_bytes"`
}

// StatusResponse represents the status response.
type StatusResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Queries monitor.QueryStatus `json:"queries"`
	Cache   CacheUsage          `json:"cache"`
	Dataset DatasetUsage        `json:"dataset"`
}

// handleStatus returns service status: query health, cache and dataset usage.
func handleStatus(c *Components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())

		overallStatus := "healthy"
		statusCode := http.StatusOK
		if !c.QueryMonitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		cacheUsage := CacheUsage{Entries: c.Cache.Len(), Max: c.Cache.Max()}
		if stats, err := c.Cache.Stats(r.Context()); err != nil {
			logger.Warnw("Failed to collect cache stats", "error", err)
		} else {
			cacheUsage.Backend = stats.Backend
			cacheUsage.SizeBytes = stats.SizeBytes
		}

		datasetUsage := DatasetUsage{
			Years:        c.Dataset.Registry.Years(),
			Institutions: c.Dataset.Directory.Len(),
			Files:        c.DatasetMonitor.Files(),
		}
		if used, err := c.DatasetMonitor.GetUsage(); err != nil {
			logger.Warnw("Failed to calculate dataset usage", "error", err)
		} else {
			datasetUsage.UsedBytes = used
		}

		httpx.RespondJSON(w, statusCode, StatusResponse{
			Status:  overallStatus,
			Version: Version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Queries: c.QueryMonitor.Status(),
			Cache:   cacheUsage,
			Dataset: datasetUsage,
		})
	}
}

// RouteOptions configures SetupRoutes.
type RouteOptions struct {
	AllowedOrigins []string
	QueryTimeout   time.Duration
	Logger         *zap.SugaredLogger
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, c *Components, opts RouteOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router.Use(corsMiddleware(opts.AllowedOrigins))
	router.Use(httpx.Middleware(logger.Named("http")))

	router.HandleFunc("/health", c.Comps.HandleHealth).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", handleStatus(c)).Methods("GET", "OPTIONS")

	bounded := withTimeout(opts.QueryTimeout)
	api.HandleFunc("/comps", bounded(c.Comps.HandleComps)).Methods("GET", "OPTIONS")
	api.HandleFunc("/comps/by-award", bounded(c.Comps.HandleByAward)).Methods("GET", "OPTIONS")
	api.HandleFunc("/comps.csv", bounded(c.Export.HandleCSV)).Methods("GET", "OPTIONS")
	api.HandleFunc("/export", bounded(c.Export.HandleExport)).Methods("GET", "OPTIONS")
}

// withTimeout bounds the request context so a stuck scan cannot hold a
// connection forever.
func withTimeout(timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if timeout <= 0 {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next(w, r.WithContext(ctx))
		}
	}
}

// corsMiddleware allows read-only cross-origin access. "*" allows any origin.
func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
