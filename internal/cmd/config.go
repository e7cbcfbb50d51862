package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or check buildagent configuration",
	Long: `View or check buildagent configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/buildagent/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "api:")
	fmt.Fprintf(out, "  base_url: %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "  timeout: %s\n", cfg.API.Timeout)
	fmt.Fprintf(out, "  rate_limit: %g\n", cfg.API.RateLimit)
	fmt.Fprintf(out, "  burst: %d\n", cfg.API.Burst)
	fmt.Fprintf(out, "  github_token: %s\n", maskSecret(cfg.API.GitHubToken))
	fmt.Fprintf(out, "  base_branch: %s\n", cfg.API.BaseBranch)

	fmt.Fprintln(out, "questions:")
	fmt.Fprintf(out, "  min: %d\n", cfg.Questions.Min)
	fmt.Fprintf(out, "  max: %d\n", cfg.Questions.Max)
	fmt.Fprintf(out, "  reveal_policy: %s\n", cfg.Questions.RevealPolicy)
	fmt.Fprintf(out, "  bank_path: %s\n", orDefault(cfg.Questions.BankPath, "(embedded)"))

	fmt.Fprintln(out, "execution:")
	fmt.Fprintf(out, "  max_concurrent: %d\n", cfg.Execution.MaxConcurrent)
	fmt.Fprintf(out, "  step_delay: %s-%s\n", cfg.Execution.StepDelayMin, cfg.Execution.StepDelayMax)
	fmt.Fprintf(out, "  completion_delay: %s\n", cfg.Execution.CompletionDelay)
	fmt.Fprintf(out, "  batch_delay: %s\n", cfg.Execution.BatchDelay)
	fmt.Fprintf(out, "  startup_delay: %s\n", cfg.Execution.StartupDelay)
	fmt.Fprintf(out, "  poll_interval: %s\n", cfg.Execution.PollInterval)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.LogDir())

	fmt.Fprintln(out, "tui:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.TUI.Enabled)
	fmt.Fprintf(out, "  max_log_lines: %d\n", cfg.TUI.MaxLogLines)

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, err := config.Load()
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
		return nil
	}

	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		for _, v := range verrs {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", v.Error())
		}
		return fmt.Errorf("configuration has %d invalid value(s)", len(verrs))
	}
	return fmt.Errorf("failed to read configuration: %w", err)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configContent := `# Buildagent Configuration

# Workflow backend
api:
  base_url: http://localhost:8000
  timeout: 30s
  # Requests per second; 0 disables limiting
  rate_limit: 10
  burst: 5
  # Forwarded on repository selection and pull request creation
  github_token: ""
  base_branch: main

# Clarifying questions
questions:
  min: 10
  max: 12
  # batched or sequential
  reveal_policy: batched
  # Empty uses the built-in bank; .yaml/.yml files are structured banks
  bank_path: ""

# Simulated execution
execution:
  # 1 or 2
  max_concurrent: 2
  step_delay_min: 1200ms
  step_delay_max: 2000ms
  completion_delay: 500ms
  batch_delay: 1s
  startup_delay: 2s
  # 0 disables backend polling
  poll_interval: 3s

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Empty uses $XDG_STATE_HOME/buildagent
  dir: ""

tui:
  enabled: true
  max_log_lines: 200
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: BUILDAGENT_* (e.g., BUILDAGENT_EXECUTION_MAX_CONCURRENT)")

	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "****"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
