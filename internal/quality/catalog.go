package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"snowtools/internal/cache"
	"snowtools/internal/snowflake"
)

// Object types as shown in the catalog. INFORMATION_SCHEMA reports
// 'BASE TABLE'; it is normalized to TABLE at ingestion.
const (
	ObjectTable = "TABLE"
	ObjectView  = "VIEW"
)

// Object is a table or view row in the documentation catalog.
type Object struct {
	Name        string
	Schema      string
	Type        string
	Description string
}

// HasDescription reports whether the object carries a non-blank comment.
func (o Object) HasDescription() bool {
	return strings.TrimSpace(o.Description) != ""
}

// Column is one column of a table or view.
type Column struct {
	Name        string
	DataType    string
	Description string
}

// HasDescription reports whether the column carries a non-blank comment.
func (c Column) HasDescription() bool {
	return strings.TrimSpace(c.Description) != ""
}

// Databases lists the databases the session can see, minus the system
// entries. Cached for the catalog TTL.
func (s *Service) Databases(ctx context.Context) ([]string, error) {
	key := cache.Key("quality", "catalog", "databases")
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]string), nil
		}
	}

	result, err := s.client.Query(ctx,
		"SELECT DATABASE_NAME FROM INFORMATION_SCHEMA.DATABASES ORDER BY DATABASE_NAME")
	if err != nil {
		return nil, err
	}

	databases := make([]string, 0, len(result.Rows))
	for _, name := range result.Strings("database_name") {
		if name == "SNOWFLAKE" || name == "INFORMATION_SCHEMA" {
			continue
		}
		databases = append(databases, name)
	}

	if s.store != nil {
		s.store.SetWithTTL(key, databases, s.catalogTTL)
	}
	return databases, nil
}

// Schemas lists the schemas of a database. INFORMATION_SCHEMA is
// preferred; sessions without privileges on it degrade to SHOW SCHEMAS.
func (s *Service) Schemas(ctx context.Context, database string) ([]string, error) {
	key := cache.Key("quality", "catalog", "schemas", strings.ToUpper(database))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]string), nil
		}
	}

	var schemas []string
	err := s.degrade.WithFallback(
		func() error {
			query := fmt.Sprintf(`SELECT SCHEMA_NAME
FROM %s.INFORMATION_SCHEMA.SCHEMATA
WHERE SCHEMA_NAME NOT IN ('INFORMATION_SCHEMA')
ORDER BY SCHEMA_NAME`, QuoteIdentifier(database))
			result, err := s.client.Query(ctx, query)
			if err != nil {
				return err
			}
			schemas = result.Strings("schema_name")
			return nil
		},
		func() error {
			result, err := s.client.Query(ctx,
				fmt.Sprintf("SHOW SCHEMAS IN DATABASE %s", QuoteIdentifier(database)))
			if err != nil {
				return err
			}
			schemas = schemas[:0]
			for _, row := range result.Rows {
				name := row.Str("name")
				if name == "" || name == "INFORMATION_SCHEMA" {
					continue
				}
				schemas = append(schemas, name)
			}
			return nil
		},
		fmt.Sprintf("INFORMATION_SCHEMA unavailable for database %s, using SHOW SCHEMAS", database),
	)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		s.store.SetWithTTL(key, schemas, s.catalogTTL)
	}
	return schemas, nil
}

// Objects lists the tables and views of one schema with their current
// descriptions, ordered by name.
func (s *Service) Objects(ctx context.Context, database, schema string) ([]Object, error) {
	key := cache.Key("quality", "catalog", "objects", strings.ToUpper(database), strings.ToUpper(schema))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]Object), nil
		}
	}

	objects, err := s.objectsInSchema(ctx, database, schema)
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	if s.store != nil {
		s.store.SetWithTTL(key, objects, s.catalogTTL)
	}
	return objects, nil
}

// AllObjects lists tables and views across every schema of a database,
// with the Schema field set, ordered by schema then name. Schemas the
// session cannot read are skipped.
func (s *Service) AllObjects(ctx context.Context, database string) ([]Object, error) {
	key := cache.Key("quality", "catalog", "objects", strings.ToUpper(database))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]Object), nil
		}
	}

	schemas, err := s.Schemas(ctx, database)
	if err != nil {
		return nil, err
	}

	var objects []Object
	for _, schema := range schemas {
		found, err := s.objectsInSchema(ctx, database, schema)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"database": database,
				"schema":   schema,
				"error":    err.Error(),
			}).Warn("schema skipped during catalog scan")
			continue
		}
		for i := range found {
			found[i].Schema = schema
		}
		objects = append(objects, found...)
	}
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Schema != objects[j].Schema {
			return objects[i].Schema < objects[j].Schema
		}
		return objects[i].Name < objects[j].Name
	})

	if s.store != nil {
		s.store.SetWithTTL(key, objects, s.catalogTTL)
	}
	return objects, nil
}

// objectsInSchema reads one schema's tables and views, degrading from
// INFORMATION_SCHEMA.TABLES to SHOW TABLES / SHOW VIEWS. Secure views
// are filtered out: the INFORMATION_SCHEMA path probes each view with a
// zero-row select, the SHOW path checks the is_secure column.
func (s *Service) objectsInSchema(ctx context.Context, database, schema string) ([]Object, error) {
	var objects []Object
	err := s.degrade.WithFallback(
		func() error {
			query := fmt.Sprintf(`SELECT TABLE_NAME as name, COMMENT as comment, TABLE_TYPE
FROM %s.INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = '%s'
  AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
ORDER BY TABLE_NAME`, QuoteIdentifier(database), escape(strings.ToUpper(schema)))
			result, err := s.client.Query(ctx, query)
			if err != nil {
				return err
			}
			objects = objects[:0]
			for _, row := range result.Rows {
				name := row.Str("name")
				if name == "" {
					continue
				}
				objType := ObjectTable
				if row.Str("table_type") == "VIEW" {
					objType = ObjectView
					if !s.viewReadable(ctx, database, schema, name) {
						continue
					}
				}
				objects = append(objects, Object{
					Name:        name,
					Type:        objType,
					Description: cleanComment(row.Str("comment")),
				})
			}
			return nil
		},
		func() error {
			objects = objects[:0]
			scope := fmt.Sprintf("%s.%s", QuoteIdentifier(database), QuoteIdentifier(schema))

			tables, err := s.client.Query(ctx, fmt.Sprintf("SHOW TABLES IN SCHEMA %s", scope))
			if err != nil {
				return err
			}
			for _, row := range tables.Rows {
				if name := row.Str("name"); name != "" {
					objects = append(objects, Object{
						Name:        name,
						Type:        ObjectTable,
						Description: cleanComment(row.Str("comment")),
					})
				}
			}

			// Views are best effort here; a failing SHOW VIEWS still
			// leaves the tables usable.
			views, err := s.client.Query(ctx, fmt.Sprintf("SHOW VIEWS IN SCHEMA %s", scope))
			if err != nil {
				return nil
			}
			for _, row := range views.Rows {
				name := row.Str("name")
				if name == "" || isSecureView(row) {
					continue
				}
				objects = append(objects, Object{
					Name:        name,
					Type:        ObjectView,
					Description: cleanComment(row.Str("comment")),
				})
			}
			return nil
		},
		fmt.Sprintf("INFORMATION_SCHEMA unavailable for schema %s.%s, using SHOW commands", database, schema),
	)
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// Columns lists the columns of a table or view in ordinal order,
// degrading from INFORMATION_SCHEMA.COLUMNS to DESC TABLE.
func (s *Service) Columns(ctx context.Context, database, schema, object string) ([]Column, error) {
	key := cache.Key("quality", "catalog", "columns",
		strings.ToUpper(database), strings.ToUpper(schema), strings.ToUpper(object))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]Column), nil
		}
	}

	var columns []Column
	err := s.degrade.WithFallback(
		func() error {
			query := fmt.Sprintf(`SELECT COLUMN_NAME, DATA_TYPE, COMMENT, ORDINAL_POSITION
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = '%s'
  AND TABLE_NAME = '%s'
ORDER BY ORDINAL_POSITION`,
				QuoteIdentifier(database),
				escape(strings.ToUpper(schema)), escape(strings.ToUpper(object)))
			result, err := s.client.Query(ctx, query)
			if err != nil {
				return err
			}
			columns = columns[:0]
			for _, row := range result.Rows {
				name := row.Str("column_name")
				if name == "" {
					continue
				}
				columns = append(columns, Column{
					Name:        name,
					DataType:    row.Str("data_type"),
					Description: cleanComment(row.Str("comment")),
				})
			}
			return nil
		},
		func() error {
			query := fmt.Sprintf("DESC TABLE %s", FullyQualifiedName(database, schema, object))
			result, err := s.client.Query(ctx, query)
			if err != nil {
				return err
			}
			columns = columns[:0]
			for _, row := range result.Rows {
				name := row.Str("name")
				if name == "" {
					continue
				}
				columns = append(columns, Column{
					Name:        name,
					DataType:    row.Str("type"),
					Description: cleanComment(row.Str("comment")),
				})
			}
			return nil
		},
		fmt.Sprintf("INFORMATION_SCHEMA unavailable for %s, using DESC TABLE", object),
	)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		s.store.SetWithTTL(key, columns, s.catalogTTL)
	}
	return columns, nil
}

// InvalidateCatalog drops every cached catalog read, forcing the next
// request back to the warehouse. Exposed for the refresh controls.
func (s *Service) InvalidateCatalog() {
	s.invalidateCatalog()
}

// viewReadable probes a view with a zero-row select. Secure views the
// session cannot read fail the probe and are hidden from the catalog.
func (s *Service) viewReadable(ctx context.Context, database, schema, view string) bool {
	query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", FullyQualifiedName(database, schema, view))
	_, err := s.client.Query(ctx, query)
	return err == nil
}

// isSecureView reads the is_secure column of SHOW VIEWS output, which
// has changed name and spelling across Snowflake releases.
func isSecureView(row snowflake.Row) bool {
	for _, col := range []string{"is_secure", "secure"} {
		switch strings.ToUpper(strings.TrimSpace(row.Str(col))) {
		case "YES", "TRUE", "Y", "1":
			return true
		}
	}
	return false
}

// cleanComment normalizes the comment spellings the metadata views
// return for "no comment".
func cleanComment(comment string) string {
	if comment == "null" || comment == "NULL" {
		return ""
	}
	return comment
}
