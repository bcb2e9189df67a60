package web

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"snowtools/internal/portal"
)

// maxImageUpload bounds tile uploads; anything bigger than this will
// not survive the 400x400 downscale anyway.
const maxImageUpload = 8 << 20

// Tile is one rendered card of the portal grid. ImageURI is typed as a
// trusted URL so the data: scheme survives template sanitization.
type Tile struct {
	App      portal.App
	ImageURI template.URL
	URL      string
}

// gridData feeds the portal grid template.
type gridData struct {
	User    string
	IsAdmin bool
	Tiles   []Tile
}

// handlePortalGrid renders the end-user app grid: every active app the
// current user can reach through a USER or ROLE grant.
func (s *Server) handlePortalGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.portal.CurrentUser(ctx)
	if err != nil {
		s.logger.Error("current user lookup failed", "error", err.Error())
		s.renderError(w, r, "Apps Portal", "The warehouse session is unavailable.", err)
		return
	}
	roles := s.portal.UserRoles(ctx, user)

	apps, err := s.portal.AccessibleApps(ctx, user, roles)
	if err != nil {
		s.logger.Error("accessible apps query failed", "user", user, "error", err.Error())
		apps = nil
	}

	org, account, orgErr := s.portal.OrgAccount(ctx)
	if orgErr != nil {
		s.logger.Warn("org lookup failed, app links disabled", "error", orgErr.Error())
	}

	tiles := make([]Tile, 0, len(apps))
	for _, app := range apps {
		tiles = append(tiles, Tile{
			App:      app,
			ImageURI: template.URL(portal.TileImage(app.ImagePath)),
			URL:      portal.BuildAppURL(org, account, app),
		})
	}

	s.renderPage(w, r, "portal_grid.html", "Apps Portal", gridData{
		User:    user,
		IsAdmin: s.portal.IsAdmin(roles),
		Tiles:   tiles,
	})
}

// adminData feeds the portal admin template; one struct serves all
// three tabs, the template switches on Tab.
type adminData struct {
	Tab     string
	User    string
	Catalog []portal.CatalogEntry

	// overview tab
	Access        []overviewRow
	Apps          []portal.App
	FilterStatus  string
	FilterType    string
	FilterApp     string
	WithoutAccess []portal.App

	// settings tab
	Stats    portal.Stats
	Database string
}

type overviewRow struct {
	Entry  portal.AccessEntry
	Status string
}

// handlePortalAdmin renders the admin area. Non-admin users are shown
// the grid instead; there is no separate login, the warehouse role is
// the authorization.
func (s *Server) handlePortalAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.portal.CurrentUser(ctx)
	if err != nil {
		s.renderError(w, r, "Portal Admin", "The warehouse session is unavailable.", err)
		return
	}
	if !s.portal.IsAdmin(s.portal.UserRoles(ctx, user)) {
		s.redirectFlash(w, r, s.path("/portal"), "error", "Portal administration requires an admin role")
		return
	}

	data := adminData{Tab: adminTab(r), User: user}

	switch data.Tab {
	case "overview":
		s.fillOverviewTab(r, &data)
	case "settings":
		stats, err := s.portal.Stats(ctx)
		if err != nil {
			s.logger.Warn("portal stats unavailable", "error", err.Error())
		}
		data.Stats = stats
		data.Database = s.portal.Database()
	default:
		discovered, err := s.portal.DiscoverApps(ctx)
		if err != nil {
			s.logger.Warn("streamlit discovery failed", "error", err.Error())
		}
		registered, err := s.portal.AllApps(ctx)
		if err != nil {
			s.logger.Warn("registered apps query failed", "error", err.Error())
		}
		data.Catalog = portal.MergeCatalog(discovered, registered)
	}

	s.renderPage(w, r, "portal_admin.html", "Portal Admin", data)
}

func adminTab(r *http.Request) string {
	switch tab := r.URL.Query().Get("tab"); tab {
	case "overview", "settings":
		return tab
	}
	return "apps"
}

func (s *Server) fillOverviewTab(r *http.Request, data *adminData) {
	ctx := r.Context()

	access, err := s.portal.AllAccess(ctx)
	if err != nil {
		s.logger.Warn("access overview query failed", "error", err.Error())
	}
	apps, err := s.portal.AllApps(ctx)
	if err != nil {
		s.logger.Warn("registered apps query failed", "error", err.Error())
	}

	data.Apps = apps
	data.FilterStatus = r.URL.Query().Get("status")
	data.FilterType = r.URL.Query().Get("type")
	data.FilterApp = r.URL.Query().Get("app")

	granted := make(map[string]bool, len(access))
	for _, entry := range access {
		granted[entry.AppID] = true

		status := "Inactive"
		if entry.AppActive {
			status = "Active"
		}
		if data.FilterStatus != "" && status != data.FilterStatus {
			continue
		}
		if data.FilterType != "" && entry.Type != data.FilterType {
			continue
		}
		if data.FilterApp != "" && entry.AppID != data.FilterApp {
			continue
		}
		data.Access = append(data.Access, overviewRow{Entry: entry, Status: status})
	}

	for _, app := range apps {
		if !granted[app.ID] {
			data.WithoutAccess = append(data.WithoutAccess, app)
		}
	}
}

// handleCatalogSave applies the manage-applications form: the diff of
// checked/unchecked/edited rows against the state the form was rendered
// from.
func (s *Server) handleCatalogSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectFlash(w, r, s.path("/portal/admin"), "error", "Invalid form submission")
		return
	}

	before, after := catalogFromForm(r)
	change, err := s.portal.SaveCatalog(r.Context(), before, after)
	if err != nil {
		s.logger.Error("catalog save failed", "error", err.Error())
		s.redirectFlash(w, r, s.path("/portal/admin"), "error", "Saving the catalog failed: "+err.Error())
		return
	}
	if change.Empty() {
		s.redirectFlash(w, r, s.path("/portal/admin"), "success", "No changes to save")
		return
	}
	s.redirectFlash(w, r, s.path("/portal/admin"), "success",
		fmt.Sprintf("Catalog saved: %d added, %d removed, %d updated",
			len(change.Add), len(change.Remove), len(change.Update)))
}

// catalogFromForm reconstructs the before/after catalog entries from
// the admin form. Each row posts its prior state in hidden fields so
// the diff never depends on a rescan between render and save.
func catalogFromForm(r *http.Request) (before, after []portal.CatalogEntry) {
	for _, name := range r.PostForm["app"] {
		prior := portal.CatalogEntry{
			App: portal.App{
				ID:           name,
				Name:         name,
				Title:        r.PostFormValue("was_title_" + name),
				Description:  r.PostFormValue("was_description_" + name),
				URLID:        r.PostFormValue("url_id_" + name),
				DatabaseName: r.PostFormValue("database_" + name),
				SchemaName:   r.PostFormValue("schema_" + name),
				Active:       r.PostFormValue("was_active_"+name) == "on",
			},
			InPortal: r.PostFormValue("was_in_portal_"+name) == "on",
		}
		before = append(before, prior)

		edited := prior
		edited.App.Title = strings.TrimSpace(r.PostFormValue("title_" + name))
		edited.App.Description = strings.TrimSpace(r.PostFormValue("description_" + name))
		edited.App.Active = r.PostFormValue("active_"+name) == "on"
		edited.InPortal = r.PostFormValue("in_portal_"+name) == "on"
		if edited.App.Title == "" {
			edited.App.Title = name
		}
		after = append(after, edited)
	}
	return before, after
}

// appDetailData feeds the per-app admin page.
type appDetailData struct {
	App      portal.App
	ImageURI template.URL
	Access   []portal.AccessEntry
	Users    []string
	Roles    []string
}

func (s *Server) handleAppDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := r.PathValue("id")

	apps, err := s.portal.AllApps(ctx)
	if err != nil {
		s.renderError(w, r, "Portal Admin", "The app catalog is unavailable.", err)
		return
	}
	var app portal.App
	found := false
	for _, candidate := range apps {
		if candidate.ID == appID {
			app, found = candidate, true
			break
		}
	}
	if !found {
		s.redirectFlash(w, r, s.path("/portal/admin"), "error", "Unknown application: "+appID)
		return
	}

	access, err := s.portal.AppAccess(ctx, appID)
	if err != nil {
		s.logger.Warn("app access query failed", "app_id", appID, "error", err.Error())
	}
	// User/role pickers degrade to free-text entry when account_usage
	// is not readable by the current role.
	users, err := s.portal.AllUsers(ctx)
	if err != nil {
		s.logger.Warn("user list unavailable", "error", err.Error())
	}
	roles, err := s.portal.AllRoles(ctx)
	if err != nil {
		s.logger.Warn("role list unavailable", "error", err.Error())
	}

	s.renderPage(w, r, "portal_app.html", app.Title, appDetailData{
		App:      app,
		ImageURI: template.URL(portal.TileImage(app.ImagePath)),
		Access:   access,
		Users:    users,
		Roles:    roles,
	})
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	detail := s.path("/portal/admin/apps/" + appID)

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		s.redirectFlash(w, r, detail, "error", "Image upload failed: "+err.Error())
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.redirectFlash(w, r, detail, "error", "No image in upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUpload))
	if err != nil {
		s.redirectFlash(w, r, detail, "error", "Reading the upload failed")
		return
	}

	if err := s.portal.SetImage(r.Context(), appID, data); err != nil {
		s.logger.Error("image update failed", "app_id", appID, "error", err.Error())
		s.redirectFlash(w, r, detail, "error", "Storing the image failed: "+err.Error())
		return
	}
	s.redirectFlash(w, r, detail, "success", "Image updated")
}

func (s *Server) handleImageClear(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	detail := s.path("/portal/admin/apps/" + appID)

	if err := s.portal.ClearImage(r.Context(), appID); err != nil {
		s.logger.Error("image clear failed", "app_id", appID, "error", err.Error())
		s.redirectFlash(w, r, detail, "error", "Removing the image failed: "+err.Error())
		return
	}
	s.redirectFlash(w, r, detail, "success", "Image removed")
}

func (s *Server) handleAccessGrant(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	detail := s.path("/portal/admin/apps/" + appID)

	accessType := r.PostFormValue("access_type")
	value := strings.TrimSpace(r.PostFormValue("access_value"))

	if err := s.portal.GrantAccess(r.Context(), appID, accessType, value); err != nil {
		s.redirectFlash(w, r, detail, "error", err.Error())
		return
	}
	s.redirectFlash(w, r, detail, "success",
		fmt.Sprintf("Access granted to %s %s", strings.ToLower(accessType), strings.ToUpper(value)))
}

func (s *Server) handleAccessRevoke(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("id")
	detail := s.path("/portal/admin/apps/" + appID)

	accessID, err := strconv.ParseInt(r.PostFormValue("access_id"), 10, 64)
	if err != nil {
		s.redirectFlash(w, r, detail, "error", "Invalid access entry")
		return
	}
	if err := s.portal.RevokeAccess(r.Context(), accessID); err != nil {
		s.redirectFlash(w, r, detail, "error", "Revoking access failed: "+err.Error())
		return
	}
	s.redirectFlash(w, r, detail, "success", "Access revoked")
}
