package cmd

import (
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"snowtools/internal/cache"
	"snowtools/internal/config"
	"snowtools/internal/portal"
	"snowtools/internal/quality"
	"snowtools/internal/security"
	"snowtools/internal/snowflake"
	"snowtools/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connection diagnostics and dashboard KPIs",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	passwords, err := security.NewCredentialManager()
	if err != nil {
		return err
	}

	start := time.Now()
	client, mode, err := snowflake.Open(cfg, passwords)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.Ping(ctx); err != nil {
		return err
	}
	color.Green("✓ Connected in %s (%s mode)", ui.FormatDuration(time.Since(start)), mode)

	store := cache.New(cache.DefaultConfig())
	defer store.Stop()

	portalSvc := portal.NewService(client, mode, store, portal.Options{
		Database:   cfg.Portal.Database,
		Schema:     cfg.Portal.Schema,
		AdminRoles: cfg.Portal.AdminRoles,
	})
	qualitySvc := quality.NewService(client, store, quality.Options{
		Database: cfg.Quality.Database,
		Schema:   cfg.Quality.Schema,
		Model:    cfg.Quality.Model,
	})

	ui.PrintSection("Session")
	if user, err := portalSvc.CurrentUser(ctx); err == nil {
		ui.PrintKeyValue("User", user)
		roles := portalSvc.UserRoles(ctx, user)
		ui.PrintKeyValue("Roles", strconv.Itoa(len(roles)))
		admin := "no"
		if portalSvc.IsAdmin(roles) {
			admin = "yes"
		}
		ui.PrintKeyValue("Portal admin", admin)
	} else {
		ui.ShowWarning("Session identity unavailable: " + err.Error())
	}

	ui.PrintSection("Apps Portal")
	if stats, err := portalSvc.Stats(ctx); err == nil {
		ui.KPITable([][2]string{
			{"Total apps", strconv.FormatInt(stats.TotalApps, 10)},
			{"Active apps", strconv.FormatInt(stats.ActiveApps, 10)},
			{"Access grants", strconv.FormatInt(stats.TotalPermissions, 10)},
		})
	} else {
		ui.ShowWarning("Portal tables unavailable: " + err.Error())
		ui.ShowInfo("Run 'snowtools init' to create them")
	}

	ui.PrintSection("Data Quality")
	kpis := qualitySvc.HomeKPIs(ctx)
	ui.KPITable([][2]string{
		{"Databases", strconv.Itoa(kpis.Databases)},
		{"Tables", strconv.FormatInt(kpis.Tables, 10)},
		{"Described tables", strconv.FormatInt(kpis.TablesWithDescriptions, 10)},
		{"Active metrics", strconv.FormatInt(kpis.ActiveMetrics, 10)},
		{"Contacts", strconv.Itoa(kpis.Contacts)},
	})

	return nil
}
