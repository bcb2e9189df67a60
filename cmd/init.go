package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snowtools/internal/cache"
	"snowtools/internal/config"
	"snowtools/internal/portal"
	"snowtools/internal/quality"
	"snowtools/internal/security"
	"snowtools/internal/snowflake"
	"snowtools/internal/ui"
	"snowtools/pkg/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup: connection, config file, warehouse objects",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().Bool("skip-objects", false, "write the config file without touching the warehouse")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ui.ShowHeader("snowtools setup")

	cfg := config.Default()
	if config.Exists() {
		if loaded, err := config.Load(); err == nil {
			cfg = loaded
		}
		overwrite, err := ui.Confirm("A config file already exists. Reconfigure?", false)
		if err != nil {
			return err
		}
		if !overwrite {
			ui.ShowInfo("Keeping the existing configuration")
			return nil
		}
	}

	if snowflake.InManagedRuntime() {
		ui.ShowInfo("Managed Snowflake runtime detected; no connection profile needed")
	} else if err := configureConnection(cfg); err != nil {
		return err
	}

	if err := configureDatabases(cfg); err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return err
	}
	ui.ShowSuccess("Configuration written to " + config.GetConfigFile())

	if skip, _ := cmd.Flags().GetBool("skip-objects"); skip {
		return nil
	}
	create, err := ui.Confirm("Create the portal and support database objects now?", true)
	if err != nil || !create {
		return err
	}
	return createWarehouseObjects(cmd, cfg)
}

// configureConnection picks the connections.toml profile and optionally
// stores a password in the credential store.
func configureConnection(cfg *models.Config) error {
	profiles, err := snowflake.LoadProfiles(snowflake.ConnectionsPath())
	if err != nil {
		return err
	}

	names := snowflake.ProfileNames(profiles)
	profile, err := ui.Select("Connection profile", names, cfg.Connection.Profile)
	if err != nil {
		return err
	}
	cfg.Connection.Profile = profile

	if profiles[profile].Password == "" {
		store, err := ui.Confirm("The profile has no password. Store one in the credential store?", true)
		if err != nil {
			return err
		}
		if store {
			password, err := ui.Password(fmt.Sprintf("Password for %s", profiles[profile].User))
			if err != nil {
				return err
			}
			manager, err := security.NewCredentialManager()
			if err != nil {
				return err
			}
			if err := manager.StoreProfilePassword(profile, password); err != nil {
				return err
			}
			ui.ShowSuccess("Password stored")
		}
	}

	if warehouse, err := ui.Input("Warehouse override (empty keeps the profile's)", cfg.Connection.Warehouse); err == nil {
		cfg.Connection.Warehouse = strings.TrimSpace(warehouse)
	}
	if role, err := ui.Input("Role override (empty keeps the profile's)", cfg.Connection.Role); err == nil {
		cfg.Connection.Role = strings.TrimSpace(role)
	}
	return nil
}

// configureDatabases asks where the portal catalog and the audit tables
// should live.
func configureDatabases(cfg *models.Config) error {
	portalDB, err := ui.Input("Portal database", cfg.Portal.Database)
	if err != nil {
		return err
	}
	cfg.Portal.Database = strings.ToUpper(strings.TrimSpace(portalDB))

	supportDB, err := ui.Input("Support database (history and quality results)", cfg.Quality.Database)
	if err != nil {
		return err
	}
	cfg.Quality.Database = strings.ToUpper(strings.TrimSpace(supportDB))

	model, err := ui.Select("Default Cortex model for generated descriptions",
		quality.AvailableModels, cfg.Quality.Model)
	if err != nil {
		return err
	}
	cfg.Quality.Model = model
	return nil
}

// createWarehouseObjects connects and runs the idempotent DDL for both
// applications.
func createWarehouseObjects(cmd *cobra.Command, cfg *models.Config) error {
	passwords, err := security.NewCredentialManager()
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner("Connecting to Snowflake")
	spinner.Start()
	client, mode, err := snowflake.Open(cfg, passwords)
	if err != nil {
		spinner.Stop(false, "Connection failed")
		return err
	}
	defer client.Close()
	spinner.Stop(true, "Connected ("+string(mode)+")")

	store := cache.New(cache.DefaultConfig())
	defer store.Stop()

	ctx := cmd.Context()

	portalSvc := portal.NewService(client, mode, store, portal.Options{
		Database: cfg.Portal.Database,
		Schema:   cfg.Portal.Schema,
	})
	// The portal database is not created implicitly; creating databases
	// is a bigger privilege than creating tables and deserves an
	// explicit step.
	if mode == snowflake.ModeConnector {
		if err := client.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+cfg.Portal.Database); err != nil {
			ui.ShowWarning("Could not create the portal database: " + err.Error())
		}
	}
	spinner = ui.NewSpinner("Creating portal tables")
	spinner.Start()
	if err := portalSvc.EnsureSchema(ctx); err != nil {
		spinner.Stop(false, "Portal tables failed")
		return err
	}
	spinner.Stop(true, "Portal tables ready")

	qualitySvc := quality.NewService(client, store, quality.Options{
		Database: cfg.Quality.Database,
		Schema:   cfg.Quality.Schema,
	})
	spinner = ui.NewSpinner("Creating support tables")
	spinner.Start()
	if err := qualitySvc.EnsureSupportSchema(ctx); err != nil {
		spinner.Stop(false, "Support tables failed")
		return err
	}
	spinner.Stop(true, "Support tables ready")

	ui.ShowSuccess("Setup complete. Start the server with: snowtools serve")
	return nil
}
