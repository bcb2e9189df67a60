package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"snowtools/internal/quality"
)

// pageURL builds a page link with the picker parameters encoded, so
// quoted identifiers containing '&', '#' or spaces survive a redirect.
func pageURL(base string, pairs ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return base + "?" + q.Encode()
}

// qualityHomeData feeds the quality home page.
type qualityHomeData struct {
	KPIs quality.HomeKPIs
	Help string
}

const qualityHelp = `## Getting started

1. **Descriptions** — browse a database, pick a table or view and write or
   generate documentation. Generated text comes from ` + "`SNOWFLAKE.CORTEX.COMPLETE`" + `
   and is always shown for review before anything is applied.
2. **Metrics** — attach Snowflake data metric functions (row count, null
   count, freshness and friends) to tables on a schedule. The tool writes
   the ` + "`ALTER TABLE`" + ` script for you; apply it here or download it for
   your change process.
3. **Contacts** — assign steward, support and access-approval contacts to
   tables so governance questions have an owner.
4. **History** — every applied change lands in an audit table, filterable
   and exportable as CSV.

Applied comments live on the objects themselves. Dropping this tool loses
nothing but the audit trail.`

func (s *Server) handleQualityHome(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "quality_home.html", "Data Quality", qualityHomeData{
		KPIs: s.quality.HomeKPIs(r.Context()),
		Help: qualityHelp,
	})
}

// browseState is the db/schema/object picker state shared by the
// descriptions, metrics and contacts pages.
type browseState struct {
	Databases []string
	Schemas   []string
	Objects   []quality.Object
	Database  string
	Schema    string
	Object    string
}

// loadBrowseState resolves the picker hierarchy for the current query
// parameters. Each level only loads once its parent is chosen; a failed
// level logs and leaves its slice empty so the page still renders.
func (s *Server) loadBrowseState(r *http.Request) browseState {
	ctx := r.Context()
	state := browseState{
		Database: r.URL.Query().Get("db"),
		Schema:   r.URL.Query().Get("schema"),
		Object:   r.URL.Query().Get("object"),
	}

	databases, err := s.quality.Databases(ctx)
	if err != nil {
		s.logger.Warn("database list unavailable", "error", err.Error())
	}
	state.Databases = databases

	if state.Database == "" {
		return state
	}
	schemas, err := s.quality.Schemas(ctx, state.Database)
	if err != nil {
		s.logger.Warn("schema list unavailable", "database", state.Database, "error", err.Error())
	}
	state.Schemas = schemas

	if state.Schema == "" {
		return state
	}
	objects, err := s.quality.Objects(ctx, state.Database, state.Schema)
	if err != nil {
		s.logger.Warn("object list unavailable",
			"database", state.Database, "schema", state.Schema, "error", err.Error())
	}
	state.Objects = objects
	return state
}

func (state browseState) selectedObject() (quality.Object, bool) {
	for _, obj := range state.Objects {
		if obj.Name == state.Object {
			return obj, true
		}
	}
	return quality.Object{}, false
}

// descriptionsData feeds the descriptions page.
type descriptionsData struct {
	Browse    browseState
	Selected  quality.Object
	Columns   []quality.Column
	Models    []string
	Model     string
	Generated generatedText
}

// generatedText carries a Cortex draft back to the form for review.
type generatedText struct {
	Target string // "object" or a column name
	Text   string
}

func (s *Server) handleDescriptions(w http.ResponseWriter, r *http.Request) {
	s.renderDescriptions(w, r, generatedText{})
}

func (s *Server) renderDescriptions(w http.ResponseWriter, r *http.Request, generated generatedText) {
	data := descriptionsData{
		Browse:    s.loadBrowseState(r),
		Models:    quality.AvailableModels,
		Model:     s.quality.DefaultModel(),
		Generated: generated,
	}
	if model := r.URL.Query().Get("model"); model != "" {
		data.Model = model
	}

	if obj, ok := data.Browse.selectedObject(); ok {
		data.Selected = obj
		columns, err := s.quality.Columns(r.Context(), data.Browse.Database, data.Browse.Schema, obj.Name)
		if err != nil {
			s.logger.Warn("column list unavailable", "object", obj.Name, "error", err.Error())
		}
		data.Columns = columns
	}

	s.renderPage(w, r, "quality_descriptions.html", "Descriptions", data)
}

// handleDescriptionGenerate asks Cortex for a draft and re-renders the
// page with the text in the review box. Generation is a read (the
// COMPLETE call mutates nothing), so it works in read-only mode too.
func (s *Server) handleDescriptionGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectFlash(w, r, s.path("/quality/descriptions"), "error", "Invalid form submission")
		return
	}

	db := r.PostFormValue("db")
	schema := r.PostFormValue("schema")
	object := r.PostFormValue("object")
	objectType := r.PostFormValue("object_type")
	column := r.PostFormValue("column")
	model := r.PostFormValue("model")
	if model == "" {
		model = s.quality.DefaultModel()
	}

	page := pageURL(s.path("/quality/descriptions"), "db", db, "schema", schema, "object", object, "model", model)

	var text string
	var err error
	target := "object"
	if column != "" {
		target = column
		text, err = s.quality.GenerateColumnDescription(r.Context(), model, db, schema, object, column, r.PostFormValue("data_type"))
	} else {
		text, err = s.quality.GenerateTableDescription(r.Context(), model, db, schema, object, objectType)
	}
	if err != nil {
		s.logger.Error("description generation failed",
			"object", object, "column", column, "model", model, "error", err.Error())
		s.redirectFlash(w, r, page, "error", "Generation failed: "+err.Error())
		return
	}

	// Re-render with the draft instead of redirecting; the text would
	// not survive a redirect.
	q := r.URL.Query()
	q.Set("db", db)
	q.Set("schema", schema)
	q.Set("object", object)
	q.Set("model", model)
	r.URL.RawQuery = q.Encode()
	s.renderDescriptions(w, r, generatedText{Target: target, Text: text})
}

func (s *Server) handleDescriptionApply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectFlash(w, r, s.path("/quality/descriptions"), "error", "Invalid form submission")
		return
	}

	db := r.PostFormValue("db")
	schema := r.PostFormValue("schema")
	object := r.PostFormValue("object")
	objectType := r.PostFormValue("object_type")
	column := r.PostFormValue("column")
	before := r.PostFormValue("before")
	after := strings.TrimSpace(r.PostFormValue("description"))

	page := pageURL(s.path("/quality/descriptions"), "db", db, "schema", schema, "object", object)

	var err error
	if column != "" {
		err = s.quality.ApplyColumnDescription(r.Context(), db, schema, object, objectType, column, before, after)
	} else {
		err = s.quality.ApplyTableDescription(r.Context(), db, schema, object, objectType, before, after)
	}
	if err != nil {
		s.logger.Error("description apply failed",
			"object", object, "column", column, "error", err.Error())
		s.redirectFlash(w, r, page, "error", "Applying the description failed: "+err.Error())
		return
	}

	target := object
	if column != "" {
		target = object + "." + column
	}
	s.redirectFlash(w, r, page, "success", "Description updated for "+target)
}

// metricsData feeds the metrics page.
type metricsData struct {
	Browse     browseState
	Selected   quality.Object
	Columns    []quality.Column
	Timestamps []string

	Schedule quality.Schedule
	Script   string
	Outcome  *quality.ApplyOutcome
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.renderMetrics(w, r, "", nil)
}

func (s *Server) renderMetrics(w http.ResponseWriter, r *http.Request, script string, outcome *quality.ApplyOutcome) {
	data := metricsData{
		Browse:  s.loadBrowseState(r),
		Script:  script,
		Outcome: outcome,
	}

	if obj, ok := data.Browse.selectedObject(); ok && obj.Type == "TABLE" {
		data.Selected = obj
		columns, err := s.quality.Columns(r.Context(), data.Browse.Database, data.Browse.Schema, obj.Name)
		if err != nil {
			s.logger.Warn("column list unavailable", "object", obj.Name, "error", err.Error())
		}
		data.Columns = columns
		data.Timestamps = quality.TimestampColumns(columns)
	}

	s.renderPage(w, r, "quality_metrics.html", "Data Metrics", data)
}

// metricRequest is the parsed metrics form: the target table, the
// schedule and the plan.
type metricRequest struct {
	Database string
	Schema   string
	Table    string
	Schedule quality.Schedule
	Plan     quality.MetricPlan
}

func parseMetricForm(r *http.Request) (metricRequest, error) {
	req := metricRequest{
		Database: r.PostFormValue("db"),
		Schema:   r.PostFormValue("schema"),
		Table:    r.PostFormValue("object"),
	}
	if req.Database == "" || req.Schema == "" || req.Table == "" {
		return req, fmt.Errorf("no table selected")
	}

	var err error
	switch r.PostFormValue("schedule_kind") {
	case "minutes":
		minutes, _ := strconv.Atoi(r.PostFormValue("schedule_minutes"))
		req.Schedule, err = quality.MinuteSchedule(minutes)
	case "hourly":
		hours, _ := strconv.Atoi(r.PostFormValue("schedule_hours"))
		req.Schedule, err = quality.HourlySchedule(hours)
	case "daily":
		hour, _ := strconv.Atoi(r.PostFormValue("schedule_hour"))
		minute, _ := strconv.Atoi(r.PostFormValue("schedule_minute"))
		req.Schedule, err = quality.DailySchedule(hour, minute)
	case "changes":
		req.Schedule = quality.ChangeSchedule()
	default:
		err = fmt.Errorf("no schedule selected")
	}
	if err != nil {
		return req, err
	}

	req.Plan.RowCount = r.PostFormValue("row_count") == "on"
	req.Plan.FreshnessColumn = r.PostFormValue("freshness_column")

	// Column metric checkboxes post as metric_<column>=<METRIC>.
	byColumn := make(map[string][]string)
	var order []string
	for key, values := range r.PostForm {
		column, ok := strings.CutPrefix(key, "metric_")
		if !ok {
			continue
		}
		if _, seen := byColumn[column]; !seen {
			order = append(order, column)
		}
		byColumn[column] = append(byColumn[column], values...)
	}
	for _, column := range order {
		req.Plan.Columns = append(req.Plan.Columns, quality.ColumnSelection{
			Column:  column,
			Metrics: byColumn[column],
		})
	}

	if req.Plan.Empty() {
		return req, fmt.Errorf("no metrics selected")
	}
	return req, nil
}

func (s *Server) buildMetricScript(w http.ResponseWriter, r *http.Request) (metricRequest, string, bool) {
	if err := r.ParseForm(); err != nil {
		s.redirectFlash(w, r, s.path("/quality/metrics"), "error", "Invalid form submission")
		return metricRequest{}, "", false
	}
	req, err := parseMetricForm(r)
	if err != nil {
		page := pageURL(s.path("/quality/metrics"), "db", req.Database, "schema", req.Schema, "object", req.Table)
		s.redirectFlash(w, r, page, "error", err.Error())
		return req, "", false
	}
	return req, quality.BuildMetricScript(req.Database, req.Schema, req.Table, req.Schedule, req.Plan), true
}

func (s *Server) handleMetricPreview(w http.ResponseWriter, r *http.Request) {
	req, script, ok := s.buildMetricScript(w, r)
	if !ok {
		return
	}
	s.rewriteQuery(r, req.Database, req.Schema, req.Table)
	s.renderMetrics(w, r, script, nil)
}

func (s *Server) handleMetricDownload(w http.ResponseWriter, r *http.Request) {
	req, script, ok := s.buildMetricScript(w, r)
	if !ok {
		return
	}
	serveSQL(w, fmt.Sprintf("dmf_%s_%s_%s.sql", req.Database, req.Schema, req.Table), script)
}

func (s *Server) handleMetricApply(w http.ResponseWriter, r *http.Request) {
	req, script, ok := s.buildMetricScript(w, r)
	if !ok {
		return
	}

	outcome := s.quality.ApplyMetricScript(r.Context(), req.Database, req.Schema, req.Table, script)
	s.rewriteQuery(r, req.Database, req.Schema, req.Table)
	s.renderMetrics(w, r, script, &outcome)
}

// rewriteQuery makes the picker state visible to a render that follows
// a POST.
func (s *Server) rewriteQuery(r *http.Request, db, schema, object string) {
	q := r.URL.Query()
	q.Set("db", db)
	q.Set("schema", schema)
	q.Set("object", object)
	r.URL.RawQuery = q.Encode()
}

// contactsData feeds the contacts page.
type contactsData struct {
	Browse   browseState
	Contacts []string
	Tables   []contactRow

	Selected string
	Script   string
}

type contactRow struct {
	Object  quality.Object
	Current map[string]string
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	s.renderContacts(w, r, "", "")
}

func (s *Server) renderContacts(w http.ResponseWriter, r *http.Request, selected, script string) {
	data := contactsData{
		Browse:   s.loadBrowseState(r),
		Contacts: s.quality.AllContacts(r.Context()),
		Selected: selected,
		Script:   script,
	}

	for _, obj := range data.Browse.Objects {
		if obj.Type != "TABLE" {
			continue
		}
		data.Tables = append(data.Tables, contactRow{
			Object:  obj,
			Current: s.quality.TableContacts(r.Context(), data.Browse.Database, data.Browse.Schema, obj.Name),
		})
	}

	s.renderPage(w, r, "quality_contacts.html", "Contacts", data)
}

func contactAssignmentFromForm(r *http.Request) quality.ContactAssignment {
	return quality.ContactAssignment{
		Steward:        r.PostFormValue("steward"),
		Support:        r.PostFormValue("support"),
		AccessApproval: r.PostFormValue("access_approval"),
	}
}

func (s *Server) contactTarget(w http.ResponseWriter, r *http.Request) (db, schema, table string, ok bool) {
	if err := r.ParseForm(); err != nil {
		s.redirectFlash(w, r, s.path("/quality/contacts"), "error", "Invalid form submission")
		return "", "", "", false
	}
	db = r.PostFormValue("db")
	schema = r.PostFormValue("schema")
	table = r.PostFormValue("table")
	if db == "" || schema == "" || table == "" {
		s.redirectFlash(w, r, s.path("/quality/contacts"), "error", "No table selected")
		return "", "", "", false
	}
	return db, schema, table, true
}

func (s *Server) handleContactPreview(w http.ResponseWriter, r *http.Request) {
	db, schema, table, ok := s.contactTarget(w, r)
	if !ok {
		return
	}
	script := quality.BuildContactScript(db, schema, table, contactAssignmentFromForm(r))

	q := r.URL.Query()
	q.Set("db", db)
	q.Set("schema", schema)
	r.URL.RawQuery = q.Encode()
	s.renderContacts(w, r, table, script)
}

func (s *Server) handleContactDownload(w http.ResponseWriter, r *http.Request) {
	db, schema, table, ok := s.contactTarget(w, r)
	if !ok {
		return
	}
	script := quality.BuildContactScript(db, schema, table, contactAssignmentFromForm(r))
	serveSQL(w, fmt.Sprintf("contacts_%s_%s_%s.sql", db, schema, table), script)
}

func (s *Server) handleContactApply(w http.ResponseWriter, r *http.Request) {
	db, schema, table, ok := s.contactTarget(w, r)
	if !ok {
		return
	}
	page := pageURL(s.path("/quality/contacts"), "db", db, "schema", schema)

	current := s.quality.TableContacts(r.Context(), db, schema, table)
	if err := s.quality.ApplyContacts(r.Context(), db, schema, table, current, contactAssignmentFromForm(r)); err != nil {
		s.logger.Error("contact assignment failed", "table", table, "error", err.Error())
		s.redirectFlash(w, r, page, "error", "Assigning contacts failed: "+err.Error())
		return
	}
	s.redirectFlash(w, r, page, "success", "Contacts updated for "+table)
}

// historyData feeds the history page; the template switches on Tab.
type historyData struct {
	Tab string

	Entries      []quality.HistoryEntry
	HistoryStats quality.HistoryStats

	Results      []quality.QualityResult
	Monitors     []quality.MonitorState
	ResultsStats quality.ResultsStats
	Window       quality.TimeWindow
	Database     string
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := historyData{Tab: "descriptions"}
	if r.URL.Query().Get("tab") == "results" {
		data.Tab = "results"
	}

	switch data.Tab {
	case "results":
		data.Window = quality.ParseWindow(r.URL.Query().Get("window"))
		data.Database = r.URL.Query().Get("db")
		results, err := s.quality.QualityResults(ctx, s.resultsFilter(r))
		if err != nil {
			s.logger.Warn("quality results unavailable", "error", err.Error())
		}
		data.Results = results
		data.Monitors = quality.MonitorSummary(results)
		data.ResultsStats = quality.SummarizeResults(results)
	default:
		entries, err := s.quality.DescriptionHistory(ctx)
		if err != nil {
			s.logger.Warn("description history unavailable", "error", err.Error())
		}
		data.Entries = entries
		data.HistoryStats = quality.SummarizeHistory(entries)
	}

	s.renderPage(w, r, "quality_history.html", "History", data)
}

func (s *Server) resultsFilter(r *http.Request) quality.ResultsFilter {
	filter := quality.ResultsFilter{
		Window: quality.ParseWindow(r.URL.Query().Get("window")),
	}
	if db := r.URL.Query().Get("db"); db != "" {
		filter.Databases = []string{db}
	}
	return filter
}
