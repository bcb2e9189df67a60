package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const historyLimit = 1000

// HistoryEntry is one recorded description, metric, or contact change.
type HistoryEntry struct {
	Database   string
	Schema     string
	ObjectType string
	ObjectName string
	ColumnName string
	Before     string
	After      string
	UpdatedBy  string
	UpdatedAt  time.Time
}

// logHistory records a change in DATA_DESCRIPTION_HISTORY. UPDATED_BY
// and UPDATED_AT come from the table defaults. A failed write must
// never fail the change it describes, so errors are only logged.
func (s *Service) logHistory(ctx context.Context, database, schema, object, column, objectType, before, after, sqlText string) {
	insert := fmt.Sprintf(`INSERT INTO %s
    (DATABASE_NAME, SCHEMA_NAME, OBJECT_NAME, COLUMN_NAME, OBJECT_TYPE, BEFORE_DESCRIPTION, AFTER_DESCRIPTION, SQL_EXECUTED)
VALUES ('%s', '%s', '%s', %s, '%s', %s, %s, %s)`,
		s.supportTable("DATA_DESCRIPTION_HISTORY"),
		escape(database), escape(schema), escape(object),
		sqlNull(column), escape(objectType),
		sqlNull(before), sqlNull(after), sqlNull(sqlText))

	if err := s.client.Exec(ctx, insert); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"object": FullyQualifiedName(database, schema, object),
			"type":   objectType,
			"error":  err.Error(),
		}).Warn("history write failed")
	}
}

// sqlNull renders a string literal, or NULL for the empty string.
func sqlNull(value string) string {
	if value == "" {
		return "NULL"
	}
	return "'" + escape(value) + "'"
}

// DescriptionHistory returns the most recent changes, newest first.
func (s *Service) DescriptionHistory(ctx context.Context) ([]HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT DATABASE_NAME, SCHEMA_NAME, OBJECT_TYPE, OBJECT_NAME, COLUMN_NAME,
    BEFORE_DESCRIPTION, AFTER_DESCRIPTION, UPDATED_BY, UPDATED_AT
FROM %s
ORDER BY UPDATED_AT DESC
LIMIT %d`, s.supportTable("DATA_DESCRIPTION_HISTORY"), historyLimit)

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(result.Rows))
	for _, row := range result.Rows {
		entries = append(entries, HistoryEntry{
			Database:   row.Str("database_name"),
			Schema:     row.Str("schema_name"),
			ObjectType: row.Str("object_type"),
			ObjectName: row.Str("object_name"),
			ColumnName: row.Str("column_name"),
			Before:     row.Str("before_description"),
			After:      row.Str("after_description"),
			UpdatedBy:  row.Str("updated_by"),
			UpdatedAt:  row.Time("updated_at"),
		})
	}
	return entries, nil
}

// HistoryStats are the headline counters of the history page.
type HistoryStats struct {
	TotalChanges  int
	UniqueObjects int
	UniqueUsers   int
}

// SummarizeHistory derives the counters from a set of entries.
func SummarizeHistory(entries []HistoryEntry) HistoryStats {
	objects := make(map[string]struct{})
	users := make(map[string]struct{})
	for _, e := range entries {
		if e.ObjectName != "" {
			objects[e.ObjectName] = struct{}{}
		}
		if e.UpdatedBy != "" {
			users[e.UpdatedBy] = struct{}{}
		}
	}
	return HistoryStats{
		TotalChanges:  len(entries),
		UniqueObjects: len(objects),
		UniqueUsers:   len(users),
	}
}

// TimeWindow restricts quality results by measurement age.
type TimeWindow string

const (
	WindowAll   TimeWindow = "all"
	WindowDay   TimeWindow = "24h"
	WindowWeek  TimeWindow = "7d"
	WindowMonth TimeWindow = "30d"
)

// ParseWindow maps a request parameter to a window, defaulting to all.
func ParseWindow(value string) TimeWindow {
	switch TimeWindow(value) {
	case WindowDay, WindowWeek, WindowMonth:
		return TimeWindow(value)
	}
	return WindowAll
}

func (w TimeWindow) condition() string {
	switch w {
	case WindowDay:
		return "MEASUREMENT_TIME >= DATEADD(hour, -24, CURRENT_TIMESTAMP())"
	case WindowWeek:
		return "MEASUREMENT_TIME >= DATEADD(day, -7, CURRENT_TIMESTAMP())"
	case WindowMonth:
		return "MEASUREMENT_TIME >= DATEADD(day, -30, CURRENT_TIMESTAMP())"
	}
	return ""
}

// SchemaRef names one schema for filtering.
type SchemaRef struct {
	Database string
	Schema   string
}

// ResultsFilter narrows the quality results query. Zero values mean
// no restriction.
type ResultsFilter struct {
	Databases []string
	Schemas   []SchemaRef
	Window    TimeWindow
}

func (f ResultsFilter) where() string {
	var conditions []string

	if len(f.Databases) > 0 {
		quoted := make([]string, 0, len(f.Databases))
		for _, db := range f.Databases {
			quoted = append(quoted, "'"+escape(db)+"'")
		}
		conditions = append(conditions, fmt.Sprintf("DATABASE_NAME IN (%s)", strings.Join(quoted, ", ")))
	}

	if len(f.Schemas) > 0 {
		pairs := make([]string, 0, len(f.Schemas))
		for _, ref := range f.Schemas {
			pairs = append(pairs, fmt.Sprintf("(DATABASE_NAME = '%s' AND SCHEMA_NAME = '%s')",
				escape(ref.Database), escape(ref.Schema)))
		}
		conditions = append(conditions, "("+strings.Join(pairs, " OR ")+")")
	}

	if cond := f.Window.condition(); cond != "" {
		conditions = append(conditions, cond)
	}

	if len(conditions) == 0 {
		return "1=1"
	}
	return strings.Join(conditions, " AND ")
}

// QualityResult is one recorded metric measurement.
type QualityResult struct {
	MonitorName  string
	Database     string
	Schema       string
	Table        string
	Column       string
	Value        float64
	Unit         string
	ThresholdMin float64
	ThresholdMax float64
	Status       string
	SQL          string
	MeasuredAt   time.Time
	RecordedAt   time.Time
}

// QualityResults returns recorded measurements matching the filter,
// newest first.
func (s *Service) QualityResults(ctx context.Context, filter ResultsFilter) ([]QualityResult, error) {
	query := fmt.Sprintf(`SELECT MONITOR_NAME, DATABASE_NAME, SCHEMA_NAME, TABLE_NAME, COLUMN_NAME,
    METRIC_VALUE, METRIC_UNIT, THRESHOLD_MIN, THRESHOLD_MAX, STATUS,
    MEASUREMENT_TIME, RECORD_INSERTED_AT, SQL_EXECUTED
FROM %s
WHERE %s
ORDER BY MEASUREMENT_TIME DESC
LIMIT %d`, s.supportTable("DATA_QUALITY_RESULTS"), filter.where(), historyLimit)

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]QualityResult, 0, len(result.Rows))
	for _, row := range result.Rows {
		results = append(results, QualityResult{
			MonitorName:  row.Str("monitor_name"),
			Database:     row.Str("database_name"),
			Schema:       row.Str("schema_name"),
			Table:        row.Str("table_name"),
			Column:       row.Str("column_name"),
			Value:        row.Float("metric_value"),
			Unit:         row.Str("metric_unit"),
			ThresholdMin: row.Float("threshold_min"),
			ThresholdMax: row.Float("threshold_max"),
			Status:       row.Str("status"),
			SQL:          row.Str("sql_executed"),
			MeasuredAt:   row.Time("measurement_time"),
			RecordedAt:   row.Time("record_inserted_at"),
		})
	}
	return results, nil
}

// MonitorState is the latest known state of one configured monitor.
type MonitorState struct {
	Database    string
	Schema      string
	Table       string
	Column      string
	MonitorType string
	LastCheck   time.Time
	LastStatus  string
	RecordedAt  time.Time
}

// MonitorSummary collapses measurements into one row per monitor,
// keeping the most recent check and status.
func MonitorSummary(results []QualityResult) []MonitorState {
	type key struct {
		db, schema, table, column, monitor string
	}

	states := make(map[key]*MonitorState)
	for _, r := range results {
		k := key{r.Database, r.Schema, r.Table, r.Column, r.MonitorName}
		state, ok := states[k]
		if !ok {
			state = &MonitorState{
				Database:    r.Database,
				Schema:      r.Schema,
				Table:       r.Table,
				Column:      r.Column,
				MonitorType: r.MonitorName,
			}
			states[k] = state
		}
		if r.MeasuredAt.After(state.LastCheck) {
			state.LastCheck = r.MeasuredAt
			state.LastStatus = r.Status
		}
		if r.RecordedAt.After(state.RecordedAt) {
			state.RecordedAt = r.RecordedAt
		}
	}

	summary := make([]MonitorState, 0, len(states))
	for _, state := range states {
		summary = append(summary, *state)
	}
	sort.Slice(summary, func(i, j int) bool {
		a, b := summary[i], summary[j]
		if a.Database != b.Database {
			return a.Database < b.Database
		}
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.MonitorType < b.MonitorType
	})
	return summary
}

// ResultsStats are the headline counters of the results page.
type ResultsStats struct {
	ActiveMonitors  int
	TablesMonitored int
	TotalChecks     int
	PassRate        float64
}

// SummarizeResults derives the counters from a set of measurements.
func SummarizeResults(results []QualityResult) ResultsStats {
	monitors := make(map[string]struct{})
	tables := make(map[string]struct{})
	passed := 0
	for _, r := range results {
		monitors[strings.Join([]string{r.Database, r.Schema, r.Table, r.Column, r.MonitorName}, "\x00")] = struct{}{}
		if r.Table != "" {
			tables[r.Table] = struct{}{}
		}
		if r.Status == "PASS" {
			passed++
		}
	}

	stats := ResultsStats{
		ActiveMonitors:  len(monitors),
		TablesMonitored: len(tables),
		TotalChecks:     len(results),
	}
	if len(results) > 0 {
		stats.PassRate = float64(passed) / float64(len(results)) * 100
	}
	return stats
}
