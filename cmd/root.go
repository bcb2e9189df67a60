package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snowtools/internal/config"
	"snowtools/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "snowtools",
	Short: "Snowflake admin dashboards: apps portal and data quality",
	Long: "snowtools serves two browser dashboards backed by Snowflake:\n" +
		"an apps portal that lists Streamlit apps by access grant, and a\n" +
		"data quality tool for documentation, metrics and contacts.",
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(config.GetConfigPath())
	viper.SetEnvPrefix("SNOWTOOLS")
	viper.AutomaticEnv()

	// Missing config is fine; defaults apply and 'snowtools init'
	// creates one.
	_ = viper.ReadInConfig()
}
