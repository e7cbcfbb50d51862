package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/buildagent/buildagent/internal/api"
	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "buildagent",
	Short: "Terminal client for the idea-to-PR workflow",
	Long: `Buildagent drives a project from an idea to a pull request.

It talks to the workflow backend for projects, plans, tasks and designs,
runs the clarifying-question review and the execution dashboard locally,
and prints plain lines instead of a terminal UI when output is piped.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so runs stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/buildagent/config.yaml)")
	rootCmd.PersistentFlags().IntP("project", "p", 0, "project id (or BUILDAGENT_PROJECT)")
	rootCmd.PersistentFlags().String("api-url", "", "backend base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringP("output", "o", outputText, "output format for show commands (text or yaml)")
	bindFlags()
}

// bindFlags ties the global flags to their viper keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("project", flags.Lookup("project"))
	_ = viper.BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BUILDAGENT")
	// e.g., BUILDAGENT_EXECUTION_MAX_CONCURRENT for execution.max_concurrent
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// session bundles what every backend-facing command needs.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	client *api.Client
}

// newSession loads and validates configuration, opens the log file and
// builds the API client.
func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.LogDir(), cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		client: api.NewClientFromConfig(cfg.API, logger),
	}, nil
}

func (s *session) Close() {
	_ = s.logger.Close()
}

// projectID returns the project selected by --project or BUILDAGENT_PROJECT.
func projectID() (int, error) {
	id := viper.GetInt("project")
	if id <= 0 {
		return 0, errors.NewValidationError("a project id is required (--project or BUILDAGENT_PROJECT)").
			WithField("project").
			WithValue(id)
	}
	return id, nil
}

// useTUI reports whether the interactive UI should run: it must be enabled,
// not disabled by --plain, and stdout must be a terminal.
func useTUI(cfg *config.Config, plain bool) bool {
	if plain || !cfg.TUI.Enabled {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
