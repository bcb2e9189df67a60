package quality

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"snowtools/pkg/errors"
)

// Metric names understood by SNOWFLAKE.CORE.
const (
	MetricRowCount       = "ROW_COUNT"
	MetricFreshness      = "FRESHNESS"
	MetricNullCount      = "NULL_COUNT"
	MetricNullPercent    = "NULL_PERCENT"
	MetricDuplicateCount = "DUPLICATE_COUNT"
	MetricUniqueCount    = "UNIQUE_COUNT"
	MetricAcceptedValues = "ACCEPTED_VALUES"
	MetricAvg            = "AVG"
	MetricMax            = "MAX"
	MetricMin            = "MIN"
	MetricStddev         = "STDDEV"
)

// Metric describes one data metric function offered for configuration.
// Manual metrics need hand-written arguments and are emitted commented
// out of the generated script.
type Metric struct {
	Name        string
	Label       string
	Help        string
	NumericOnly bool
	Manual      bool
}

var columnMetrics = []Metric{
	{Name: MetricNullCount, Label: "Null Count", Help: "Count NULL values in columns"},
	{Name: MetricNullPercent, Label: "Null Percent", Help: "Percentage of NULL values in columns"},
	{Name: MetricDuplicateCount, Label: "Duplicate Count", Help: "Count duplicate values in columns"},
	{Name: MetricUniqueCount, Label: "Unique Count", Help: "Count unique, non-NULL values in columns"},
	{Name: MetricAcceptedValues, Label: "Accepted Values", Help: "Values matching Boolean expression (requires manual config)", Manual: true},
	{Name: MetricAvg, Label: "Average", Help: "Average value of numeric columns", NumericOnly: true},
	{Name: MetricMax, Label: "Maximum", Help: "Maximum value of columns", NumericOnly: true},
	{Name: MetricMin, Label: "Minimum", Help: "Minimum value of columns", NumericOnly: true},
	{Name: MetricStddev, Label: "Standard Deviation", Help: "Standard deviation of numeric columns", NumericOnly: true},
}

// AvailableColumnMetrics returns the column-level metric catalog in
// display order.
func AvailableColumnMetrics() []Metric {
	out := make([]Metric, len(columnMetrics))
	copy(out, columnMetrics)
	return out
}

var numericTypeKeywords = []string{"NUMBER", "INT", "FLOAT", "DECIMAL", "NUMERIC", "DOUBLE"}

// IsNumericType reports whether a Snowflake data type is numeric.
func IsNumericType(dataType string) bool {
	upper := strings.ToUpper(dataType)
	for _, kw := range numericTypeKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// MetricsForType filters the catalog to metrics applicable to a column
// of the given data type. Statistical metrics only fit numeric columns.
func MetricsForType(dataType string) []Metric {
	numeric := IsNumericType(dataType)
	out := make([]Metric, 0, len(columnMetrics))
	for _, m := range columnMetrics {
		if m.NumericOnly && !numeric {
			continue
		}
		out = append(out, m)
	}
	return out
}

var timestampKeywords = []string{"DATE", "TIME", "TIMESTAMP", "CREATED", "UPDATED"}

// TimestampColumns picks columns eligible as a freshness anchor, by
// name convention.
func TimestampColumns(columns []Column) []string {
	var out []string
	for _, col := range columns {
		upper := strings.ToUpper(col.Name)
		for _, kw := range timestampKeywords {
			if strings.Contains(upper, kw) {
				out = append(out, col.Name)
				break
			}
		}
	}
	return out
}

// Schedule is a validated DATA_METRIC_SCHEDULE expression with a
// human-readable description.
type Schedule struct {
	Expression  string
	Description string
}

var (
	scheduleMinutes      = map[int]bool{5: true, 15: true, 30: true, 60: true}
	scheduleHours        = map[int]bool{1: true, 2: true, 3: true, 4: true, 6: true, 8: true, 12: true, 24: true}
	scheduleDailyMinutes = map[int]bool{0: true, 15: true, 30: true, 45: true}
)

// MinuteSchedule runs checks every n minutes. Snowflake's minimum
// interval is 5 minutes.
func MinuteSchedule(minutes int) (Schedule, error) {
	if !scheduleMinutes[minutes] {
		return Schedule{}, errors.ValidationError("minutes", minutes, "must be one of 5, 15, 30, 60")
	}
	return Schedule{
		Expression:  fmt.Sprintf("%d MINUTE", minutes),
		Description: fmt.Sprintf("Every %d minutes", minutes),
	}, nil
}

// HourlySchedule runs checks every n hours.
func HourlySchedule(hours int) (Schedule, error) {
	if !scheduleHours[hours] {
		return Schedule{}, errors.ValidationError("hours", hours, "must be one of 1, 2, 3, 4, 6, 8, 12, 24")
	}
	return Schedule{
		Expression:  fmt.Sprintf("USING CRON 0 */%d * * * UTC", hours),
		Description: fmt.Sprintf("Every %d hours", hours),
	}, nil
}

// DailySchedule runs checks once a day at hour:minute UTC.
func DailySchedule(hour, minute int) (Schedule, error) {
	if hour < 0 || hour > 23 {
		return Schedule{}, errors.ValidationError("hour", hour, "must be between 0 and 23")
	}
	if !scheduleDailyMinutes[minute] {
		return Schedule{}, errors.ValidationError("minute", minute, "must be one of 0, 15, 30, 45")
	}
	return Schedule{
		Expression:  fmt.Sprintf("USING CRON %d %d * * * UTC", minute, hour),
		Description: fmt.Sprintf("Daily at %02d:%02d UTC", hour, minute),
	}, nil
}

// ChangeSchedule runs checks whenever the table data changes.
func ChangeSchedule() Schedule {
	return Schedule{
		Expression:  "TRIGGER_ON_CHANGES",
		Description: "When data in the table changes (INSERT, UPDATE, DELETE)",
	}
}

// ColumnSelection assigns metrics to one column.
type ColumnSelection struct {
	Column  string
	Metrics []string
}

// MetricPlan is everything selected for one table.
type MetricPlan struct {
	RowCount        bool
	FreshnessColumn string
	Columns         []ColumnSelection
}

// Empty reports whether the plan selects nothing.
func (p MetricPlan) Empty() bool {
	return !p.RowCount && p.FreshnessColumn == "" && len(p.Columns) == 0
}

// BuildMetricScript renders the SQL script for a plan. The schedule
// must come first; Snowflake rejects ADD DATA METRIC FUNCTION on a
// table without one.
func BuildMetricScript(database, schema, table string, schedule Schedule, plan MetricPlan) string {
	fqn := FullyQualifiedName(database, schema, table)
	var lines []string

	lines = append(lines,
		fmt.Sprintf("-- DMF setup for %s", fqn),
		"",
		"-- Step 1: Set monitoring schedule (required)",
		fmt.Sprintf("ALTER TABLE %s SET DATA_METRIC_SCHEDULE = '%s';", fqn, schedule.Expression),
		"",
		"-- Step 2: Add Data Metric Functions")

	if plan.RowCount {
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s ADD DATA METRIC FUNCTION SNOWFLAKE.CORE.ROW_COUNT ON ();", fqn))
	}
	if plan.FreshnessColumn != "" {
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s ADD DATA METRIC FUNCTION SNOWFLAKE.CORE.FRESHNESS ON (%s);",
			fqn, QuoteIdentifier(plan.FreshnessColumn)))
	}

	if len(plan.Columns) > 0 {
		lines = append(lines, "", "-- Column-level DMFs")
		for _, sel := range plan.Columns {
			quoted := QuoteIdentifier(sel.Column)
			lines = append(lines, fmt.Sprintf("-- DMFs for column: %s", quoted))
			for _, metric := range sel.Metrics {
				if metric == MetricAcceptedValues {
					lines = append(lines, fmt.Sprintf("-- ALTER TABLE %s ADD DATA METRIC FUNCTION SNOWFLAKE.CORE.ACCEPTED_VALUES ON (%s) -- Requires Boolean expression",
						fqn, quoted))
					continue
				}
				lines = append(lines, fmt.Sprintf("ALTER TABLE %s ADD DATA METRIC FUNCTION SNOWFLAKE.CORE.%s ON (%s);",
					fqn, metric, quoted))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines,
		"",
		"-- View results with:",
		"-- SELECT * FROM TABLE(SNOWFLAKE.LOCAL.DATA_QUALITY_MONITORING_RESULTS());")

	return strings.Join(lines, "\n")
}

// ApplyOutcome reports how a script application went. Partial success
// is possible; Failed carries the statements that did not run.
type ApplyOutcome struct {
	Applied int
	Failed  []string
}

var (
	metricNameRe   = regexp.MustCompile(`SNOWFLAKE\.CORE\.(\w+)`)
	metricColumnRe = regexp.MustCompile(`ON \(([^)]+)\)`)
)

// ApplyMetricScript executes a generated script statement by statement,
// skipping comments and blanks. Each successful ADD is recorded in
// history; failures are collected instead of aborting the run.
func (s *Service) ApplyMetricScript(ctx context.Context, database, schema, table, script string) ApplyOutcome {
	var outcome ApplyOutcome

	for _, line := range strings.Split(script, "\n") {
		stmt := strings.TrimSpace(line)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		stmt = strings.TrimSuffix(stmt, ";")

		if err := s.client.Exec(ctx, stmt); err != nil {
			outcome.Failed = append(outcome.Failed, stmt)
			s.logger.WithFields(map[string]interface{}{
				"statement": stmt,
				"error":     err.Error(),
			}).Warn("metric statement failed")
			continue
		}
		outcome.Applied++

		if strings.Contains(strings.ToUpper(stmt), "ADD DATA METRIC FUNCTION") {
			s.logMetricAddition(ctx, database, schema, table, stmt)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"table":   FullyQualifiedName(database, schema, table),
		"applied": outcome.Applied,
		"failed":  len(outcome.Failed),
	}).Info("metric script applied")
	return outcome
}

// logMetricAddition parses an executed ADD statement back into a
// history entry.
func (s *Service) logMetricAddition(ctx context.Context, database, schema, table, stmt string) {
	m := metricNameRe.FindStringSubmatch(strings.ToUpper(stmt))
	if m == nil {
		return
	}
	metric := m[1]

	column := ""
	if cm := metricColumnRe.FindStringSubmatch(stmt); cm != nil {
		column = strings.Trim(strings.TrimSpace(cm[1]), `"`)
	}

	objectType := "DMF_" + metric
	after := fmt.Sprintf("Added %s data quality metric", metric)
	if column != "" {
		objectType += "_COLUMN"
		after += " to column " + column
	}

	s.logHistory(ctx, database, schema, table, column, objectType, "", after, stmt)
}

// ActiveMetricCount counts distinct configured metrics account-wide.
// Reading the monitoring results needs specific grants, so failures
// count as zero.
func (s *Service) ActiveMetricCount(ctx context.Context) int64 {
	query := "select count(distinct table_database || table_schema || metric_name) as dmf_count FROM SNOWFLAKE.LOCAL.DATA_QUALITY_MONITORING_RESULTS"
	result, err := s.client.Query(ctx, query)
	if err != nil {
		return 0
	}
	row, ok := result.First()
	if !ok {
		return 0
	}
	return row.Int("dmf_count")
}
