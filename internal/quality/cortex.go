package quality

import (
	"context"
	"fmt"
	"strings"

	"snowtools/internal/snowflake"
	"snowtools/pkg/errors"
)

// AvailableModels lists the Cortex COMPLETE models offered for
// description generation. The first entry is the built-in default.
var AvailableModels = []string{
	"claude-4-sonnet",
	"mistral-large2",
	"llama3-70b",
	"snowflake-arctic",
	"snowflake-llama-3.1-405b",
}

const (
	tableSampleRows  = 5
	columnSampleRows = 10
)

// GenerateTableDescription asks Cortex for a table or view description,
// grounding the prompt in the column list and a small data sample. The
// result is capped at 150 characters by the prompt, not enforced here.
func (s *Service) GenerateTableDescription(ctx context.Context, model, database, schema, object, objectType string) (string, error) {
	columns, err := s.Columns(ctx, database, schema, object)
	if err != nil {
		return "", err
	}

	sample := s.sampleObject(ctx, database, schema, object)
	prompt := buildTablePrompt(objectType, database, schema, object, columnsText(columns), sample)
	return s.complete(ctx, model, prompt)
}

// GenerateColumnDescription asks Cortex for a column description from
// ten non-null sample values. Capped at 100 characters by the prompt.
func (s *Service) GenerateColumnDescription(ctx context.Context, model, database, schema, object, column, dataType string) (string, error) {
	sample := s.sampleColumn(ctx, database, schema, object, column)
	prompt := buildColumnPrompt(database, schema, object, column, dataType, sample)
	return s.complete(ctx, model, prompt)
}

// complete runs SNOWFLAKE.CORTEX.COMPLETE and sanitizes the answer.
func (s *Service) complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = s.model
	}

	query := fmt.Sprintf(`SELECT SNOWFLAKE.CORTEX.COMPLETE(
    '%s',
    %s
) as generated_description`, escape(model), dollarQuote(prompt))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return "", errors.CortexError(model, err)
	}
	row, ok := result.First()
	if !ok {
		return "", errors.New(errors.ErrCodeNoResults, "Cortex returned no completion").
			WithContext("model", model)
	}
	return sanitizeDescription(row.Str("generated_description")), nil
}

// sampleObject formats up to five rows of the object for the prompt.
// Sampling is best effort; unreadable objects degrade to a marker the
// model can work around.
func (s *Service) sampleObject(ctx context.Context, database, schema, object string) string {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d",
		FullyQualifiedName(database, schema, object), tableSampleRows)
	result, err := s.client.Query(ctx, query)
	if err != nil {
		return "Unable to sample data"
	}
	return formatSample(result)
}

// sampleColumn formats up to ten non-null values of one column.
func (s *Service) sampleColumn(ctx context.Context, database, schema, object, column string) string {
	quoted := QuoteIdentifier(column)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		quoted, FullyQualifiedName(database, schema, object), quoted, columnSampleRows)
	result, err := s.client.Query(ctx, query)
	if err != nil {
		return "Unable to sample data"
	}
	return formatSample(result)
}

const promptPreamble = "You are an expert data steward and have been tasked with writing descriptions for tables and columns in an enterprise data warehouse. \n" +
	"Use the provided metadata and the first few rows of data to write a concise, meaningful, and business-centric description. \n" +
	"This description should be helpful to both business analysts and technical analysts. \n" +
	"Focus on the purpose of the data, its key contents, and any important context. \n" +
	"Output only the description text."

func buildTablePrompt(objectType, database, schema, object, columns, sample string) string {
	return fmt.Sprintf(`%s Keep the description to 150 characters or less.

---METADATA---
%s Name: %s
Schema: %s
Database: %s
Columns:
%s

---SAMPLE DATA (LIMIT %d ROWS)---
%s

---TASK---
Generate a description for the %s named %s.`,
		promptPreamble,
		objectType, object,
		schema,
		database,
		columns,
		tableSampleRows,
		sample,
		strings.ToLower(objectType), object)
}

func buildColumnPrompt(database, schema, object, column, dataType, sample string) string {
	return fmt.Sprintf(`%s Keep the description to 100 characters or less.

---METADATA---
Column Name: %s
Table Name: %s
Schema: %s
Database: %s
Data Type: %s

---SAMPLE DATA (LIMIT %d ROWS)---
%s

---TASK---
Generate a description for the column named %s.`,
		promptPreamble,
		column,
		object,
		schema,
		database,
		dataType,
		columnSampleRows,
		sample,
		column)
}

// columnsText renders the column list for the table prompt.
func columnsText(columns []Column) string {
	if len(columns) == 0 {
		return "No columns found"
	}
	lines := make([]string, 0, len(columns))
	for _, col := range columns {
		line := fmt.Sprintf("- %s (%s)", col.Name, col.DataType)
		if col.Description != "" {
			line += ": " + col.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatSample renders a result set as an aligned text table, one line
// per row, uppercase headers.
func formatSample(result *snowflake.Result) string {
	if result == nil || len(result.Columns) == 0 {
		return "No rows returned"
	}

	widths := make([]int, len(result.Columns))
	headers := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = strings.ToUpper(col)
		widths[i] = len(headers[i])
	}

	cells := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		line := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			line[i] = row.Str(col)
			if len(line[i]) > widths[i] {
				widths[i] = len(line[i])
			}
		}
		cells = append(cells, line)
	}

	var b strings.Builder
	writeLine := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(v)
			if i < len(values)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-len(v)))
			}
		}
		b.WriteString("\n")
	}

	writeLine(headers)
	for _, line := range cells {
		writeLine(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// dollarQuote wraps text in Snowflake dollar quoting. An embedded "$$"
// would terminate the literal early, and a trailing "$" would merge
// with the closing delimiter, so both are stripped.
func dollarQuote(text string) string {
	text = strings.ReplaceAll(text, "$$", "")
	text = strings.TrimRight(text, "$")
	return "$$" + text + "$$"
}

// sanitizeDescription trims the completion and unwraps the quotation
// marks models like to add.
func sanitizeDescription(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	return strings.TrimSpace(text)
}
