package quality

import (
	"context"
	"math"
)

// HomeKPIs are the headline numbers on the quality home page. Every
// counter is best effort: a failed sub-query leaves its value at zero
// rather than taking the page down.
type HomeKPIs struct {
	Databases              int
	Schemas                int
	Tables                 int64
	TablesWithDescriptions int64
	DescriptionPct         float64
	ActiveMetrics          int64
	TablesWithMetrics      int64
	Contacts               int
	TablesWithContacts     int64
}

// HomeKPIs gathers the dashboard counters.
func (s *Service) HomeKPIs(ctx context.Context) HomeKPIs {
	var kpis HomeKPIs

	databases, err := s.Databases(ctx)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("database count unavailable")
	} else {
		kpis.Databases = len(databases)
	}

	kpis.Tables, kpis.TablesWithDescriptions = s.tableCounts(ctx)
	if kpis.Tables > 0 {
		pct := float64(kpis.TablesWithDescriptions) / float64(kpis.Tables) * 100
		kpis.DescriptionPct = math.Round(pct*10) / 10
	}

	kpis.Schemas = s.estimateSchemaCount(ctx, databases)
	kpis.ActiveMetrics = s.ActiveMetricCount(ctx)
	kpis.Contacts = len(s.AllContacts(ctx)) - 1

	kpis.TablesWithMetrics = min(kpis.ActiveMetrics, kpis.Tables)
	kpis.TablesWithContacts = min(int64(kpis.Contacts), kpis.Tables)
	return kpis
}

// tableCounts reads account-wide totals from ACCOUNT_USAGE, which is
// far cheaper than walking INFORMATION_SCHEMA per database.
func (s *Service) tableCounts(ctx context.Context) (total, described int64) {
	query := `SELECT COUNT(*) as total_tables,
    COUNT(comment) as tables_with_descriptions
FROM snowflake.account_usage.tables
WHERE table_catalog NOT IN ('SNOWFLAKE')
  AND table_catalog IS NOT NULL
  AND table_type ILIKE '%table%'
  AND owner_role_type <> 'APPLICATION'`

	result, err := s.client.Query(ctx, query)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("table counts unavailable")
		return 0, 0
	}
	row, ok := result.First()
	if !ok {
		return 0, 0
	}
	return row.Int("total_tables"), row.Int("tables_with_descriptions")
}

// estimateSchemaCount samples the first three databases and scales the
// result to the whole account. An exact count would cost a query per
// database.
func (s *Service) estimateSchemaCount(ctx context.Context, databases []string) int {
	sample := databases
	if len(sample) > 3 {
		sample = sample[:3]
	}
	if len(sample) == 0 {
		return 0
	}

	total := 0
	for _, db := range sample {
		schemas, err := s.Schemas(ctx, db)
		if err != nil {
			continue
		}
		total += len(schemas)
	}
	return int(float64(total) * float64(len(databases)) / float64(len(sample)))
}
