package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// serveSQL delivers a generated script as a .sql attachment.
func serveSQL(w http.ResponseWriter, filename, script string) {
	w.Header().Set("Content-Type", "application/sql")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(script))
}

// serveCSV streams rows as a CSV attachment. The write function
// receives the open writer; a failed flush is logged by the caller's
// middleware via the response status, nothing to do here.
func serveCSV(w http.ResponseWriter, filename string, header []string, write func(*csv.Writer)) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	write(cw)
	cw.Flush()
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// handleHistoryCSV exports the description history.
func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := s.quality.DescriptionHistory(r.Context())
	if err != nil {
		s.logger.Error("history export failed", "error", err.Error())
		http.Error(w, "History unavailable", http.StatusServiceUnavailable)
		return
	}

	header := []string{"database", "schema", "object_type", "object_name", "column_name",
		"before_description", "after_description", "updated_by", "updated_at"}
	serveCSV(w, "description_history.csv", header, func(cw *csv.Writer) {
		for _, e := range entries {
			_ = cw.Write([]string{
				e.Database, e.Schema, e.ObjectType, e.ObjectName, e.ColumnName,
				e.Before, e.After, e.UpdatedBy, csvTime(e.UpdatedAt),
			})
		}
	})
}

// handleResultsCSV exports the quality measurements matching the
// current filters.
func (s *Server) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	results, err := s.quality.QualityResults(r.Context(), s.resultsFilter(r))
	if err != nil {
		s.logger.Error("results export failed", "error", err.Error())
		http.Error(w, "Results unavailable", http.StatusServiceUnavailable)
		return
	}

	header := []string{"monitor_name", "database", "schema", "table", "column",
		"metric_value", "metric_unit", "status", "measurement_time", "recorded_at"}
	serveCSV(w, "quality_results.csv", header, func(cw *csv.Writer) {
		for _, qr := range results {
			_ = cw.Write([]string{
				qr.MonitorName, qr.Database, qr.Schema, qr.Table, qr.Column,
				strconv.FormatFloat(qr.Value, 'f', -1, 64), qr.Unit, qr.Status,
				csvTime(qr.MeasuredAt), csvTime(qr.RecordedAt),
			})
		}
	})
}
