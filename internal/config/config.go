package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all buildagent configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Questions QuestionsConfig `mapstructure:"questions"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// APIConfig controls how the workflow backend is reached
type APIConfig struct {
	// BaseURL is the backend root, without the /api suffix
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds every HTTP request
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the sustained outbound request rate (requests per second).
	// A value of 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the number of requests allowed above RateLimit at once
	Burst int `mapstructure:"burst"`
	// GitHubToken is forwarded on repository selection and PR creation
	GitHubToken string `mapstructure:"github_token"`
	// BaseBranch is the branch pull requests target
	BaseBranch string `mapstructure:"base_branch"`
}

// Reveal policies for the clarifying-question pipeline
const (
	RevealBatched    = "batched"
	RevealSequential = "sequential"
)

// QuestionsConfig controls the clarifying-question pipeline
type QuestionsConfig struct {
	// Min is the selection target when few questions need input
	Min int `mapstructure:"min"`
	// Max caps the number of selected questions
	Max int `mapstructure:"max"`
	// RevealPolicy is "batched" (5 then 3s with chat progress) or "sequential" (one at a time)
	RevealPolicy string `mapstructure:"reveal_policy"`
	// BankPath points at a question bank file. Empty uses the embedded bank.
	// Files ending in .yaml or .yml are read as structured banks.
	BankPath string `mapstructure:"bank_path"`
	// InitialDelay precedes the first revealed batch
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	// BatchInterval separates subsequent batches (batched policy)
	BatchInterval time.Duration `mapstructure:"batch_interval"`
	// StepInterval separates questions (sequential policy)
	StepInterval time.Duration `mapstructure:"step_interval"`
	// FinalDelay precedes the completion chat message (batched policy)
	FinalDelay time.Duration `mapstructure:"final_delay"`
}

// MaxConcurrentLimit is the most tasks the engine ever runs at once.
const MaxConcurrentLimit = 2

// ExecutionConfig controls the simulated execution engine
type ExecutionConfig struct {
	// MaxConcurrent is the number of tasks allowed in progress at once,
	// from 1 to MaxConcurrentLimit
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// StepDelayMin and StepDelayMax bound the randomized delay before each task log entry
	StepDelayMin time.Duration `mapstructure:"step_delay_min"`
	StepDelayMax time.Duration `mapstructure:"step_delay_max"`
	// CompletionDelay precedes marking a task completed
	CompletionDelay time.Duration `mapstructure:"completion_delay"`
	// BatchDelay separates admitted batches
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	// StartupDelay precedes the backend start call and the first batch
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	// PollInterval is how often task status is refreshed from the backend.
	// A value of 0 disables polling.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is where buildagent.log is written. Empty uses the state directory.
	Dir string `mapstructure:"dir"`
}

// TUIConfig controls terminal UI behavior
type TUIConfig struct {
	// Enabled selects the interactive UI when stdout is a terminal
	Enabled bool `mapstructure:"enabled"`
	// MaxLogLines caps the execution log tail kept on screen
	MaxLogLines int `mapstructure:"max_log_lines"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			Timeout:    30 * time.Second,
			RateLimit:  10,
			Burst:      5,
			BaseBranch: "main",
		},
		Questions: QuestionsConfig{
			Min:           10,
			Max:           12,
			RevealPolicy:  RevealBatched,
			BankPath:      "",
			InitialDelay:  800 * time.Millisecond,
			BatchInterval: 400 * time.Millisecond,
			StepInterval:  300 * time.Millisecond,
			FinalDelay:    500 * time.Millisecond,
		},
		Execution: ExecutionConfig{
			MaxConcurrent:   2,
			StepDelayMin:    1200 * time.Millisecond,
			StepDelayMax:    2000 * time.Millisecond,
			CompletionDelay: 500 * time.Millisecond,
			BatchDelay:      1000 * time.Millisecond,
			StartupDelay:    2000 * time.Millisecond,
			PollInterval:    3 * time.Second,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		TUI: TUIConfig{
			Enabled:     true,
			MaxLogLines: 200,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// API defaults
	viper.SetDefault("api.base_url", defaults.API.BaseURL)
	viper.SetDefault("api.timeout", defaults.API.Timeout)
	viper.SetDefault("api.rate_limit", defaults.API.RateLimit)
	viper.SetDefault("api.burst", defaults.API.Burst)
	viper.SetDefault("api.github_token", defaults.API.GitHubToken)
	viper.SetDefault("api.base_branch", defaults.API.BaseBranch)

	// Questions defaults
	viper.SetDefault("questions.min", defaults.Questions.Min)
	viper.SetDefault("questions.max", defaults.Questions.Max)
	viper.SetDefault("questions.reveal_policy", defaults.Questions.RevealPolicy)
	viper.SetDefault("questions.bank_path", defaults.Questions.BankPath)
	viper.SetDefault("questions.initial_delay", defaults.Questions.InitialDelay)
	viper.SetDefault("questions.batch_interval", defaults.Questions.BatchInterval)
	viper.SetDefault("questions.step_interval", defaults.Questions.StepInterval)
	viper.SetDefault("questions.final_delay", defaults.Questions.FinalDelay)

	// Execution defaults
	viper.SetDefault("execution.max_concurrent", defaults.Execution.MaxConcurrent)
	viper.SetDefault("execution.step_delay_min", defaults.Execution.StepDelayMin)
	viper.SetDefault("execution.step_delay_max", defaults.Execution.StepDelayMax)
	viper.SetDefault("execution.completion_delay", defaults.Execution.CompletionDelay)
	viper.SetDefault("execution.batch_delay", defaults.Execution.BatchDelay)
	viper.SetDefault("execution.startup_delay", defaults.Execution.StartupDelay)
	viper.SetDefault("execution.poll_interval", defaults.Execution.PollInterval)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)
	viper.SetDefault("tui.max_log_lines", defaults.TUI.MaxLogLines)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildagent")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildagent"
	}
	return filepath.Join(home, ".config", "buildagent")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory for logs and exported answers
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildagent")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".buildagent"
	}
	return filepath.Join(home, ".local", "state", "buildagent")
}

// LogDir resolves the effective log directory
func (c *LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return StateDir()
}

// ValidRevealPolicies returns the list of valid reveal policy values
func ValidRevealPolicies() []string {
	return []string{RevealBatched, RevealSequential}
}
