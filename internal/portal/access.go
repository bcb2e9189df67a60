package portal

import (
	"context"
	"fmt"
	"strings"

	"snowtools/pkg/errors"
)

// AccessTypeUser and AccessTypeRole are the two grantee kinds a portal
// app can be shared with.
const (
	AccessTypeUser = "USER"
	AccessTypeRole = "ROLE"
)

// AppAccess returns the grants for one app, ordered by type then value.
func (s *Service) AppAccess(ctx context.Context, appID string) ([]AccessEntry, error) {
	query := fmt.Sprintf(`SELECT access_id, access_type, access_value, created_at
FROM %s
WHERE app_id = '%s'
ORDER BY access_type, access_value`, s.table("app_access"), escape(appID))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]AccessEntry, 0, len(result.Rows))
	for _, row := range result.Rows {
		entry := accessFromRow(row)
		entry.AppID = appID
		entries = append(entries, entry)
	}
	return entries, nil
}

// AllAccess returns every grant joined with its app, for the access
// overview tab. Apps without grants are not included; the overview page
// derives those from AllApps.
func (s *Service) AllAccess(ctx context.Context) ([]AccessEntry, error) {
	query := fmt.Sprintf(`SELECT aa.access_id, aa.app_id, pa.app_title, pa.is_active, aa.access_type, aa.access_value, aa.created_at
FROM %s aa
INNER JOIN %s pa ON aa.app_id = pa.app_id
ORDER BY pa.app_title, aa.access_type, aa.access_value`,
		s.table("app_access"), s.table("portal_apps"))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := make([]AccessEntry, 0, len(result.Rows))
	for _, row := range result.Rows {
		entries = append(entries, accessFromRow(row))
	}
	return entries, nil
}

// GrantAccess adds a USER or ROLE grant to an app. Values are stored
// upper-cased. Duplicates are detected by lookup first so the caller
// gets a friendly message instead of a constraint error.
func (s *Service) GrantAccess(ctx context.Context, appID, accessType, value string) error {
	accessType = strings.ToUpper(strings.TrimSpace(accessType))
	value = strings.ToUpper(strings.TrimSpace(value))

	if accessType != AccessTypeUser && accessType != AccessTypeRole {
		return errors.ValidationError("access_type", accessType, "must be USER or ROLE")
	}
	if value == "" {
		return errors.ValidationError("access_value", value, "cannot be empty")
	}

	lookup := fmt.Sprintf(`SELECT access_id
FROM %s
WHERE app_id = '%s' AND access_type = '%s' AND UPPER(access_value) = '%s'`,
		s.table("app_access"), escape(appID), accessType, escape(value))

	existing, err := s.client.Query(ctx, lookup)
	if err != nil {
		return err
	}
	if !existing.Empty() {
		return errors.DuplicateError("Access permission", value).
			WithContext("app_id", appID).
			WithContext("access_type", accessType)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (app_id, access_type, access_value)
VALUES ('%s', '%s', '%s')`,
		s.table("app_access"), escape(appID), accessType, escape(value))

	if err := s.client.Exec(ctx, insert); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"app_id": appID,
		"type":   accessType,
		"value":  value,
	}).Info("access granted")
	s.invalidateCatalog()
	return nil
}

// RevokeAccess removes a grant by its access_id.
func (s *Service) RevokeAccess(ctx context.Context, accessID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE access_id = %d", s.table("app_access"), accessID)
	if err := s.client.Exec(ctx, query); err != nil {
		return err
	}

	s.logger.WithField("access_id", accessID).Info("access revoked")
	s.invalidateCatalog()
	return nil
}
