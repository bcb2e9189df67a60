package quality

import (
	"context"
	"fmt"
	"strings"

	"snowtools/internal/cache"
)

// ContactNone is the selection meaning no contact.
const ContactNone = "None"

// Contact purposes recognized by Snowflake object contacts.
const (
	PurposeSteward        = "STEWARD"
	PurposeSupport        = "SUPPORT"
	PurposeAccessApproval = "ACCESS_APPROVAL"
)

// ContactPurposes lists the purposes in display order.
var ContactPurposes = []string{PurposeSteward, PurposeSupport, PurposeAccessApproval}

// AllContacts returns every contact in the account as a fully
// qualified name, prefixed with the None option. Listing contacts
// takes privileges many roles lack, so failures degrade to just None.
func (s *Service) AllContacts(ctx context.Context) []string {
	key := cache.Key("quality", "contacts", "all")
	if s.store != nil {
		if hit, ok := s.store.Get(key); ok {
			if contacts, ok := hit.([]string); ok {
				return contacts
			}
		}
	}

	contacts := []string{ContactNone}
	result, err := s.client.Query(ctx, "SHOW CONTACTS IN ACCOUNT")
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("unable to list account contacts")
		return contacts
	}

	for _, row := range result.Rows {
		name := row.Str("name")
		database := row.Str("database_name")
		schema := row.Str("schema_name")
		if name == "" || database == "" || schema == "" {
			continue
		}
		contacts = append(contacts, fmt.Sprintf(`%s.%s."%s"`, database, schema, name))
	}

	if s.store != nil {
		s.store.SetWithTTL(key, contacts, s.catalogTTL)
	}
	return contacts
}

// TableContacts returns the contacts assigned to a table, keyed by
// purpose. Unassigned purposes are absent. ACCOUNT_USAGE lags live
// assignments by up to a couple of hours.
func (s *Service) TableContacts(ctx context.Context, database, schema, table string) map[string]string {
	key := cache.Key("quality", "contacts", database, schema, table)
	if s.store != nil {
		if hit, ok := s.store.Get(key); ok {
			if contacts, ok := hit.(map[string]string); ok {
				return contacts
			}
		}
	}

	contacts := make(map[string]string)
	query := fmt.Sprintf(`SELECT CONTACT_NAME, CONTACT_DATABASE, CONTACT_SCHEMA, CONTACT_PURPOSE
FROM SNOWFLAKE.ACCOUNT_USAGE.CONTACT_REFERENCES
WHERE OBJECT_DATABASE = '%s'
  AND OBJECT_SCHEMA = '%s'
  AND OBJECT_NAME = '%s'
  AND OBJECT_DELETED IS NULL`,
		escape(database), escape(schema), escape(table))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("unable to read table contacts")
		return contacts
	}

	for _, row := range result.Rows {
		purpose := row.Str("contact_purpose")
		name := row.Str("contact_name")
		if name == "" || !validPurpose(purpose) {
			continue
		}
		contacts[purpose] = fmt.Sprintf(`%s.%s."%s"`,
			row.Str("contact_database"), row.Str("contact_schema"), name)
	}

	if s.store != nil {
		s.store.SetWithTTL(key, contacts, s.catalogTTL)
	}
	return contacts
}

func validPurpose(purpose string) bool {
	for _, p := range ContactPurposes {
		if p == purpose {
			return true
		}
	}
	return false
}

// ContactAssignment selects the contact for each purpose. ContactNone
// or the empty string leaves a purpose untouched.
type ContactAssignment struct {
	Steward        string
	Support        string
	AccessApproval string
}

func (a ContactAssignment) chosen() [][2]string {
	pairs := make([][2]string, 0, 3)
	if picked(a.Steward) {
		pairs = append(pairs, [2]string{PurposeSteward, a.Steward})
	}
	if picked(a.Support) {
		pairs = append(pairs, [2]string{PurposeSupport, a.Support})
	}
	if picked(a.AccessApproval) {
		pairs = append(pairs, [2]string{PurposeAccessApproval, a.AccessApproval})
	}
	return pairs
}

func picked(contact string) bool {
	return contact != "" && contact != ContactNone
}

// BuildContactScript renders the assignment statement, or the empty
// string when nothing is chosen. Contact references are identifiers,
// not string literals, and go in unquoted.
func BuildContactScript(database, schema, table string, assign ContactAssignment) string {
	pairs := assign.chosen()
	if len(pairs) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		clauses = append(clauses, fmt.Sprintf("%s = %s", pair[0], pair[1]))
	}
	return fmt.Sprintf("ALTER TABLE %s SET CONTACT %s;",
		FullyQualifiedName(database, schema, table), strings.Join(clauses, ", "))
}

// ApplyContacts executes the assignment and records one history entry
// per chosen purpose, with the previous assignment as the before
// value. current comes from TableContacts.
func (s *Service) ApplyContacts(ctx context.Context, database, schema, table string, current map[string]string, assign ContactAssignment) error {
	script := BuildContactScript(database, schema, table, assign)
	if script == "" {
		return nil
	}

	stmt := strings.TrimSuffix(script, ";")
	if err := s.client.Exec(ctx, stmt); err != nil {
		return err
	}

	for _, pair := range assign.chosen() {
		before := current[pair[0]]
		if before == ContactNone {
			before = ""
		}
		s.logHistory(ctx, database, schema, table, "", "CONTACT_"+pair[0], before, pair[1], stmt)
	}

	s.logger.WithField("table", FullyQualifiedName(database, schema, table)).Info("contacts assigned")
	s.invalidateContacts()
	return nil
}
