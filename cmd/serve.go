package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snowtools/internal/cache"
	"snowtools/internal/config"
	"snowtools/internal/observability"
	"snowtools/internal/portal"
	"snowtools/internal/quality"
	"snowtools/internal/security"
	"snowtools/internal/snowflake"
	"snowtools/internal/web"
	"snowtools/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	Long: "Serve the apps portal and data quality dashboards over HTTP.\n" +
		"Inside a managed Snowflake runtime the ambient session is used;\n" +
		"elsewhere the configured connections.toml profile connects.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default "+config.DefaultAddr+")")
	serveCmd.Flags().String("base-path", "", "URL prefix when running behind a proxy")
	serveCmd.Flags().Bool("read-only", false, "disable all mutating endpoints")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", serveCmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("server.read_only", serveCmd.Flags().Lookup("read-only"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(logLevel),
		Service: "snowtools",
	})
	observability.SetDefaultLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyServeOverrides(cmd, cfg)

	passwords, err := security.NewCredentialManager()
	if err != nil {
		return err
	}

	client, mode, err := snowflake.Open(cfg, passwords)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.WithField("mode", string(mode)).Info("warehouse connected")

	store := cache.New(cache.DefaultConfig())
	defer store.Stop()

	catalogTTL := config.TTL(cfg.Cache.CatalogTTL, config.DefaultCatalogTTL)
	portalSvc := portal.NewService(client, mode, store, portal.Options{
		Database:   cfg.Portal.Database,
		Schema:     cfg.Portal.Schema,
		AdminRoles: cfg.Portal.AdminRoles,
		CatalogTTL: catalogTTL,
		UsersTTL:   config.TTL(cfg.Cache.UsersTTL, config.DefaultUsersTTL),
		OrgTTL:     config.TTL(cfg.Cache.OrgTTL, config.DefaultOrgTTL),
	})
	qualitySvc := quality.NewService(client, store, quality.Options{
		Database:   cfg.Quality.Database,
		Schema:     cfg.Quality.Schema,
		Model:      cfg.Quality.Model,
		CatalogTTL: catalogTTL,
	})

	// Schema setup is best effort: a read-only role can still browse,
	// and 'snowtools init' creates the objects properly.
	ctx := cmd.Context()
	if err := portalSvc.EnsureSchema(ctx); err != nil {
		logger.WithField("error", err.Error()).Warn("portal schema setup failed; continuing")
	}
	if err := qualitySvc.EnsureSupportSchema(ctx); err != nil {
		logger.WithField("error", err.Error()).Warn("support schema setup failed; continuing")
	}

	server := web.NewServer(portalSvc, qualitySvc, web.Config{
		BasePath: cfg.Server.BasePath,
		ReadOnly: cfg.Server.ReadOnly,
		Logger:   observability.NewKVLogger(logger.Component("web")),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":      cfg.Server.Addr,
			"base_path": cfg.Server.BasePath,
			"read_only": cfg.Server.ReadOnly,
		}).Info("dashboard server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}
	return nil
}

// applyServeOverrides lets flags win over config.yaml.
func applyServeOverrides(cmd *cobra.Command, cfg *models.Config) {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if base, _ := cmd.Flags().GetString("base-path"); base != "" {
		cfg.Server.BasePath = base
	}
	if cmd.Flags().Changed("read-only") {
		readOnly, _ := cmd.Flags().GetBool("read-only")
		cfg.Server.ReadOnly = readOnly
	}
}
