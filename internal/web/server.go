package web

import (
	"io/fs"
	"net/http"
	"strings"

	"snowtools/internal/observability"
	"snowtools/internal/portal"
	"snowtools/internal/quality"
)

// Logger is the slog-style interface the web layer logs through. Tests
// inject a quiet implementation; production wires the observability
// logger via its KV adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the server options that reach the handlers.
type Config struct {
	// BasePath is the URL prefix when the server sits behind a proxy.
	// Empty means the server is mounted at /.
	BasePath string

	// ReadOnly rejects every mutating endpoint with a flash message.
	ReadOnly bool

	// Logger receives request and handler logs. Nil falls back to the
	// default observability logger.
	Logger Logger
}

// Server renders the two dashboards. Every page is rebuilt from the
// warehouse on each request; the only state held here is the renderer
// and the shared services.
type Server struct {
	portal   *portal.Service
	quality  *quality.Service
	cfg      Config
	logger   Logger
	renderer *renderer
}

// NewServer wires the handlers over the two services.
func NewServer(portalSvc *portal.Service, qualitySvc *quality.Service, cfg Config) *Server {
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")
	if cfg.Logger == nil {
		cfg.Logger = observability.NewKVLogger(observability.GetDefaultLogger().Component("web"))
	}
	return &Server{
		portal:   portalSvc,
		quality:  qualitySvc,
		cfg:      cfg,
		logger:   cfg.Logger,
		renderer: newRenderer(cfg.BasePath, cfg.ReadOnly),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	staticSub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.path("/portal"), http.StatusTemporaryRedirect)
	})

	// Apps portal
	mux.HandleFunc("GET /portal", s.handlePortalGrid)
	mux.HandleFunc("GET /portal/admin", s.handlePortalAdmin)
	mux.HandleFunc("POST /portal/admin/catalog", s.mutating(s.handleCatalogSave))
	mux.HandleFunc("GET /portal/admin/apps/{id}", s.handleAppDetail)
	mux.HandleFunc("POST /portal/admin/apps/{id}/image", s.mutating(s.handleImageUpload))
	mux.HandleFunc("POST /portal/admin/apps/{id}/image/clear", s.mutating(s.handleImageClear))
	mux.HandleFunc("POST /portal/admin/apps/{id}/access", s.mutating(s.handleAccessGrant))
	mux.HandleFunc("POST /portal/admin/apps/{id}/access/revoke", s.mutating(s.handleAccessRevoke))

	// Data quality & documentation
	mux.HandleFunc("GET /quality", s.handleQualityHome)
	mux.HandleFunc("GET /quality/descriptions", s.handleDescriptions)
	mux.HandleFunc("POST /quality/descriptions/generate", s.handleDescriptionGenerate)
	mux.HandleFunc("POST /quality/descriptions/apply", s.mutating(s.handleDescriptionApply))
	mux.HandleFunc("GET /quality/metrics", s.handleMetrics)
	mux.HandleFunc("POST /quality/metrics/preview", s.handleMetricPreview)
	mux.HandleFunc("POST /quality/metrics/download", s.handleMetricDownload)
	mux.HandleFunc("POST /quality/metrics/apply", s.mutating(s.handleMetricApply))
	mux.HandleFunc("GET /quality/contacts", s.handleContacts)
	mux.HandleFunc("POST /quality/contacts/preview", s.handleContactPreview)
	mux.HandleFunc("POST /quality/contacts/download", s.handleContactDownload)
	mux.HandleFunc("POST /quality/contacts/apply", s.mutating(s.handleContactApply))
	mux.HandleFunc("GET /quality/history", s.handleHistory)
	mux.HandleFunc("GET /quality/history/descriptions.csv", s.handleHistoryCSV)
	mux.HandleFunc("GET /quality/history/results.csv", s.handleResultsCSV)

	var handler http.Handler = mux
	if s.cfg.BasePath != "" {
		handler = http.StripPrefix(s.cfg.BasePath, handler)
	}
	return s.recoverPanics(s.logRequests(handler))
}

// path prefixes a route with the configured base path.
func (s *Server) path(p string) string {
	return s.cfg.BasePath + p
}

// mutating guards write endpoints when the server runs read-only.
func (s *Server) mutating(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.ReadOnly {
			s.redirectFlash(w, r, refererOr(r, s.path("/portal")), "error", "Server is running read-only")
			return
		}
		next(w, r)
	}
}

func refererOr(r *http.Request, fallback string) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return fallback
	}
	return ref
}
