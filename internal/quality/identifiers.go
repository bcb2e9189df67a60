package quality

import (
	"fmt"
	"strings"
)

// Words that Snowflake rejects as bare identifiers in the positions this
// tool uses them.
var reservedIdentifiers = map[string]bool{
	"TABLE":    true,
	"COLUMN":   true,
	"VIEW":     true,
	"DATABASE": true,
	"SCHEMA":   true,
	"SELECT":   true,
	"FROM":     true,
	"WHERE":    true,
}

const identifierSpecials = "-.+/*()[]{}"

// QuoteIdentifier wraps an identifier in double quotes when it contains
// spaces or special characters or collides with a reserved word.
// Identifiers that arrive already quoted pass through unchanged.
func QuoteIdentifier(name string) string {
	if name == "" {
		return name
	}
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return name
	}
	if strings.Contains(name, " ") ||
		strings.ContainsAny(name, identifierSpecials) ||
		reservedIdentifiers[strings.ToUpper(name)] {
		return `"` + name + `"`
	}
	return name
}

// FullyQualifiedName builds database.schema.object with each part quoted
// as needed.
func FullyQualifiedName(database, schema, object string) string {
	return fmt.Sprintf("%s.%s.%s",
		QuoteIdentifier(database), QuoteIdentifier(schema), QuoteIdentifier(object))
}
