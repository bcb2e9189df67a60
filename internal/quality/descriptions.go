package quality

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"snowtools/pkg/errors"
)

// History object types recorded for description changes.
const (
	historyTypeTable  = "TABLE"
	historyTypeView   = "VIEW"
	historyTypeColumn = "COLUMN"
)

// ApplyTableDescription sets the description of a table or view.
// Tables take COMMENT ON TABLE; views must be rebuilt because their
// comments only live in the DDL. Every change is recorded in the
// description history.
func (s *Service) ApplyTableDescription(ctx context.Context, database, schema, object, objectType, before, after string) error {
	var stmt string
	if strings.EqualFold(objectType, ObjectView) {
		rebuilt, err := s.rebuildView(ctx, database, schema, object, nil, after)
		if err != nil {
			return err
		}
		stmt = rebuilt
	} else {
		stmt = fmt.Sprintf("COMMENT ON TABLE %s IS '%s'",
			FullyQualifiedName(database, schema, object), escape(after))
		if err := s.client.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	s.logHistory(ctx, database, schema, object, "", historyType(objectType), before, after, stmt)
	s.logger.WithFields(map[string]interface{}{
		"object": FullyQualifiedName(database, schema, object),
		"type":   objectType,
	}).Info("description updated")
	s.invalidateCatalog()
	return nil
}

// ApplyColumnDescription sets the description of a single column.
// View columns go through a full view rebuild.
func (s *Service) ApplyColumnDescription(ctx context.Context, database, schema, object, objectType, column, before, after string) error {
	var stmt string
	if strings.EqualFold(objectType, ObjectView) {
		rebuilt, err := s.rebuildView(ctx, database, schema, object, map[string]string{column: after}, "")
		if err != nil {
			return err
		}
		stmt = rebuilt
	} else {
		stmt = fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'",
			FullyQualifiedName(database, schema, object), QuoteIdentifier(column), escape(after))
		if err := s.client.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	s.logHistory(ctx, database, schema, object, column, historyTypeColumn, before, after, stmt)
	s.logger.WithFields(map[string]interface{}{
		"object": FullyQualifiedName(database, schema, object),
		"column": column,
	}).Info("column description updated")
	s.invalidateCatalog()
	return nil
}

func historyType(objectType string) string {
	if strings.EqualFold(objectType, ObjectView) {
		return historyTypeView
	}
	return historyTypeTable
}

// rebuildView recreates a view with updated comments and returns the
// executed DDL. Snowflake has no COMMENT ON COLUMN for views, so the
// defining SELECT is recovered from GET_DDL and the view replaced with
// COMMENT clauses in its column list. columnComments overrides by
// column name; existing column comments are preserved otherwise. An
// empty viewComment keeps whatever comment the current DDL carries.
func (s *Service) rebuildView(ctx context.Context, database, schema, view string, columnComments map[string]string, viewComment string) (string, error) {
	fqn := FullyQualifiedName(database, schema, view)

	ddl, err := s.viewDDL(ctx, database, schema, view)
	if err != nil {
		return "", err
	}
	selectBody, ok := viewSelect(ddl)
	if !ok {
		return "", errors.New(errors.ErrCodeResultParsing, "Could not locate the defining SELECT in the view DDL").
			WithContext("view", fqn)
	}
	if viewComment == "" {
		viewComment = extractViewComment(ddl)
	}

	columns, err := s.Columns(ctx, database, schema, view)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", errors.New(errors.ErrCodeObjectNotFound, fmt.Sprintf("View '%s' has no columns", fqn))
	}

	commentClause := ""
	if viewComment != "" {
		commentClause = fmt.Sprintf(" COMMENT = '%s'", escape(viewComment))
	}

	stmt := fmt.Sprintf(`CREATE OR REPLACE VIEW %s (
        %s
    )%s AS (
    %s
    )`, fqn, strings.Join(columnDefinitions(columns, columnComments), ",\n        "), commentClause, selectBody)

	if err := s.client.Exec(ctx, stmt); err != nil {
		return "", err
	}
	return stmt, nil
}

// viewDDL fetches the current CREATE VIEW statement.
func (s *Service) viewDDL(ctx context.Context, database, schema, view string) (string, error) {
	fqn := FullyQualifiedName(database, schema, view)
	query := fmt.Sprintf("SELECT GET_DDL('VIEW', '%s') as ddl", escape(fqn))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return "", err
	}
	row, ok := result.First()
	if !ok || row.Str("ddl") == "" {
		return "", errors.New(errors.ErrCodeObjectNotFound, fmt.Sprintf("Could not retrieve DDL for view '%s'", fqn))
	}
	return row.Str("ddl"), nil
}

// columnDefinitions renders the column list of a rebuilt view. Updates
// win over existing comments; an update to the empty string clears the
// comment. Matching is case-insensitive on the column name.
func columnDefinitions(columns []Column, updates map[string]string) []string {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted := QuoteIdentifier(col.Name)

		comment, updated := lookupColumnUpdate(updates, col.Name)
		if !updated {
			comment = strings.TrimSpace(col.Description)
		}
		if comment == "" {
			defs = append(defs, quoted)
			continue
		}
		defs = append(defs, fmt.Sprintf("%s COMMENT '%s'", quoted, escape(comment)))
	}
	return defs
}

func lookupColumnUpdate(updates map[string]string, column string) (string, bool) {
	for name, comment := range updates {
		if strings.EqualFold(name, column) {
			return comment, true
		}
	}
	return "", false
}

// GET_DDL output varies with how the view was created: the column list
// may be followed by a COMMENT clause, and the SELECT may or may not be
// wrapped in parentheses.
var (
	viewAsWrappedRe   = regexp.MustCompile(`(?is)\)\s*(?:COMMENT\s*=\s*'(?:[^']|'')*'\s*)?AS\s*\(`)
	viewAsUnwrappedRe = regexp.MustCompile(`(?is)\)\s*(?:COMMENT\s*=\s*'(?:[^']|'')*'\s*)?AS\s+SELECT`)
	viewCommentRe     = regexp.MustCompile(`(?is)\)\s*COMMENT\s*=\s*'((?:[^']|'')*)'\s*AS`)
	selectKeywordRe   = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// viewSelect extracts the defining SELECT from a CREATE VIEW statement.
func viewSelect(ddl string) (string, bool) {
	if loc := viewAsWrappedRe.FindStringIndex(ddl); loc != nil {
		rest := ddl[loc[1]:]
		if m := selectKeywordRe.FindStringIndex(rest); m != nil {
			rest = rest[m[0]:]
		}
		return cleanSelect(rest, true), true
	}

	if loc := viewAsUnwrappedRe.FindStringIndex(ddl); loc != nil {
		// The match consumed the SELECT keyword; restore it.
		return cleanSelect("SELECT "+strings.TrimSpace(ddl[loc[1]:]), false), true
	}

	if idx := strings.Index(strings.ToUpper(ddl), " AS "); idx >= 0 {
		return cleanSelect(ddl[idx+4:], false), true
	}
	return "", false
}

// cleanSelect trims statement terminators and, for a parenthesized AS
// clause, the single closing parenthesis that belongs to the wrapper.
func cleanSelect(sel string, wrapped bool) string {
	sel = strings.TrimSpace(sel)
	sel = strings.TrimRight(sel, ";")
	sel = strings.TrimSpace(sel)
	if wrapped {
		sel = strings.TrimSuffix(sel, ")")
		sel = strings.TrimSpace(sel)
	}
	if !strings.HasPrefix(strings.ToUpper(sel), "SELECT") {
		sel = "SELECT " + sel
	}
	return sel
}

// extractViewComment pulls the view-level COMMENT clause out of the
// DDL so a rebuild does not silently drop it.
func extractViewComment(ddl string) string {
	if m := viewCommentRe.FindStringSubmatch(ddl); m != nil {
		return strings.ReplaceAll(m[1], "''", "'")
	}
	return ""
}
