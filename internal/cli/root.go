package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/config"
)

const version = "0.1.0"

// Exit codes returned by Run.
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:           "tribunal",
	Short:         "Multi-agent code review orchestrator",
	Long:          "Tribunal classifies a branch, dispatches specialized reviewer agents over the diff, and gates the change on their aggregated findings.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Run executes the root command and returns an exit code.
func Run() int {
	exitCode = ExitSuccess
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// fail reports err on stderr and records code as the exit code.
func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exitCode = code
}

// loadConfig reads the --config file, or the default one, with overrides.
func loadConfig(overrides map[string]any) (config.Config, error) {
	path := flagConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	cfg, err := config.LoadFrom(path, overrides)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

func configPath() (string, error) {
	if flagConfigPath != "" {
		return flagConfigPath, nil
	}
	return config.ConfigPath()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print tribunal version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tribunal version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file path (default: platform config dir)")
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)
}
