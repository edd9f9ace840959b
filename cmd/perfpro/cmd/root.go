package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/psantana5/perfpro/internal/report"
	"github.com/psantana5/perfpro/pkg/logging"
	"github.com/psantana5/perfpro/pkg/perf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "perfpro",
	Short: "Mark and measure named intervals of a run",
	Long: `perfpro records named marks on a shared store and reports the durations
between them. It can wrap a command or a YAML plan of commands, marking every
step, and print or serve the resulting durations.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to subcommands
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.perfpro/config.yaml)")
	rootCmd.PersistentFlags().String("app", "", "namespace for marks (default from plan or \""+perf.DefaultApp+"\")")
	rootCmd.PersistentFlags().StringP("output", "o", string(report.FormatTable), "output format: table, json, yaml or prom")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON lines")

	viper.BindPFlag("app", rootCmd.PersistentFlags().Lookup("app"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".perfpro"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PERFPRO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
		}
	}
}

// newLogger builds the CLI logger from configuration. Logs go to stderr so
// they never mix with rendered output.
func newLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(viper.GetString("log_level")), viper.GetBool("log_json"))
}

// outputFormat returns the configured output format
func outputFormat() (report.Format, error) {
	return report.ParseFormat(viper.GetString("output"))
}

// appName picks the namespace: flag or config first, then the plan's, then
// the default.
func appName(fromPlan string) string {
	if app := viper.GetString("app"); app != "" {
		return app
	}
	if fromPlan != "" {
		return fromPlan
	}
	return perf.DefaultApp
}
