package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"snowtools/internal/quality"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// PageData wraps the payload of every rendered page.
type PageData struct {
	Title       string
	BasePath    string
	CurrentPath string
	ReadOnly    bool
	Flash       *Flash
	Data        any
}

// Flash is a one-shot notice carried across a redirect in the query
// string.
type Flash struct {
	Kind    string // success, warning, error
	Message string
}

// renderer parses the base layout once and page templates per request.
// Cloning the base before each parse keeps the pages' "content" blocks
// from colliding.
type renderer struct {
	base     *template.Template
	basePath string
	readOnly bool
}

func newRenderer(basePath string, readOnly bool) *renderer {
	base := template.Must(template.New("").
		Funcs(templateFuncs()).
		ParseFS(templatesFS, "templates/base.html"))
	return &renderer{base: base, basePath: basePath, readOnly: readOnly}
}

func (rn *renderer) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) error {
	tmpl, err := rn.base.Clone()
	if err != nil {
		return fmt.Errorf("clone templates: %w", err)
	}
	if _, err := tmpl.ParseFS(templatesFS, "templates/"+page); err != nil {
		return fmt.Errorf("parse template %s: %w", page, err)
	}

	pd := PageData{
		Title:       title,
		BasePath:    rn.basePath,
		CurrentPath: r.URL.Path,
		ReadOnly:    rn.readOnly,
		Flash:       flashFromQuery(r),
		Data:        data,
	}

	// Render to a buffer first so template failures become a clean 500
	// instead of a half-written page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", pd); err != nil {
		return fmt.Errorf("execute template %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// renderPage renders a full page, degrading to a plain 500 when the
// template itself fails.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	if err := s.renderer.render(w, r, http.StatusOK, page, title, data); err != nil {
		s.logger.Error("render failed", "page", page, "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// errorData feeds the shared error page.
type errorData struct {
	Message string
	Detail  string
}

// renderError shows a whole-page failure: the warehouse itself is
// unreachable and no section of the page can render.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, title, message string, cause error) {
	data := errorData{Message: message}
	if cause != nil {
		data.Detail = cause.Error()
	}
	if err := s.renderer.render(w, r, http.StatusServiceUnavailable, "error.html", title, data); err != nil {
		s.logger.Error("render failed", "page", "error.html", "error", err.Error())
		http.Error(w, message, http.StatusServiceUnavailable)
	}
}

func flashFromQuery(r *http.Request) *Flash {
	message := r.URL.Query().Get("flash")
	if message == "" {
		return nil
	}
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "error", "warning":
	default:
		kind = "success"
	}
	return &Flash{Kind: kind, Message: message}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"timeAgo":    timeAgo,
		"truncate":   truncate,
		"markdown":   markdownHTML,
		"pct":        formatPct,
		"metricsFor": quality.MetricsForType,
	}
}

var (
	markdownEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))
	htmlSanitizer  = bluemonday.UGCPolicy()
)

// markdownHTML renders markdown and sanitizes the result before it is
// trusted as HTML.
func markdownHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
