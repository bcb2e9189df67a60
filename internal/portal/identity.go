package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"snowtools/internal/cache"
)

// CurrentUser returns the warehouse session's user name.
func (s *Service) CurrentUser(ctx context.Context) (string, error) {
	result, err := s.client.Query(ctx, "SELECT CURRENT_USER() as username")
	if err != nil {
		return "", err
	}
	row, ok := result.First()
	if !ok {
		return "", nil
	}
	return row.Str("username"), nil
}

// UserRoles returns every role granted to the user plus PUBLIC, which
// every Snowflake user holds implicitly. account_usage needs elevated
// privileges; when the query fails the portal still works for
// PUBLIC-shared apps, so the error is logged and swallowed.
func (s *Service) UserRoles(ctx context.Context, user string) []string {
	key := cache.Key("portal", "apps", "roles", strings.ToUpper(user))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]string)
		}
	}

	roles := []string{"PUBLIC"}
	query := fmt.Sprintf(`SELECT DISTINCT ROLE
FROM snowflake.account_usage.grants_to_users
WHERE granted_to = 'USER' AND GRANTEE_NAME = '%s'`, escape(user))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"user":  user,
			"error": err.Error(),
		}).Warn("role lookup failed, continuing with PUBLIC only")
		return roles
	}

	for _, role := range result.Strings("role") {
		if role != "" && !containsFold(roles, role) {
			roles = append(roles, role)
		}
	}
	if s.store != nil {
		s.store.SetWithTTL(key, roles, s.catalogTTL)
	}
	return roles
}

// IsAdmin reports whether any of the user's roles is a configured
// portal admin role.
func (s *Service) IsAdmin(roles []string) bool {
	for _, role := range roles {
		if containsFold(s.adminRoles, role) {
			return true
		}
	}
	return false
}

// AllUsers lists account users for the grant pickers, sorted, cached for
// the users TTL. Dropped users keep a row in account_usage with a NULL
// owner, hence the filter.
func (s *Service) AllUsers(ctx context.Context) ([]string, error) {
	key := cache.Key("portal", "users")
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]string), nil
		}
	}

	result, err := s.client.Query(ctx, "select distinct name from snowflake.account_usage.users where owner is not null")
	if err != nil {
		return nil, err
	}

	users := result.Strings("name")
	sort.Strings(users)
	if s.store != nil {
		s.store.SetWithTTL(key, users, s.usersTTL)
	}
	return users, nil
}

// AllRoles lists account roles for the grant pickers, sorted. PUBLIC is
// always present even when the account_usage read returns nothing.
func (s *Service) AllRoles(ctx context.Context) ([]string, error) {
	key := cache.Key("portal", "roles")
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]string), nil
		}
	}

	result, err := s.client.Query(ctx, "select distinct name from snowflake.account_usage.roles")
	if err != nil {
		return nil, err
	}

	roles := result.Strings("name")
	if !containsFold(roles, "PUBLIC") {
		roles = append(roles, "PUBLIC")
	}
	sort.Strings(roles)
	if s.store != nil {
		s.store.SetWithTTL(key, roles, s.usersTTL)
	}
	return roles, nil
}

// OrgAccount returns the organization and account names used to build
// app URLs, cached for the org TTL.
func (s *Service) OrgAccount(ctx context.Context) (string, string, error) {
	key := cache.Key("portal", "org")
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			pair := v.([2]string)
			return pair[0], pair[1], nil
		}
	}

	result, err := s.client.Query(ctx, "SELECT CURRENT_ORGANIZATION_NAME() as organization, CURRENT_ACCOUNT_NAME() as account")
	if err != nil {
		return "", "", err
	}
	row, ok := result.First()
	if !ok {
		return "", "", nil
	}

	org, account := row.Str("organization"), row.Str("account")
	if s.store != nil {
		s.store.SetWithTTL(key, [2]string{org, account}, s.orgTTL)
	}
	return org, account, nil
}

// AppURL builds the Snowsight launch URL for an app, or "" when the app
// is missing its database/schema coordinates.
func (s *Service) AppURL(ctx context.Context, app App) (string, error) {
	org, account, err := s.OrgAccount(ctx)
	if err != nil {
		return "", err
	}
	return BuildAppURL(org, account, app), nil
}

// BuildAppURL is the pure form of AppURL for callers that already hold
// the org and account names.
func BuildAppURL(org, account string, app App) string {
	if org == "" || account == "" {
		return ""
	}
	if app.Name == "" || app.DatabaseName == "" || app.SchemaName == "" {
		return ""
	}
	return fmt.Sprintf("https://app.snowflake.com/%s/%s/#/streamlit-apps/%s.%s.%s",
		org, account, app.DatabaseName, app.SchemaName, app.Name)
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
