package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.Questions.Min)
	assert.Equal(t, 12, cfg.Questions.Max)
	assert.Equal(t, RevealBatched, cfg.Questions.RevealPolicy)
	assert.Equal(t, 2, cfg.Execution.MaxConcurrent)
	assert.Equal(t, 1200*time.Millisecond, cfg.Execution.StepDelayMin)
	assert.Equal(t, 2000*time.Millisecond, cfg.Execution.StepDelayMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Execution.CompletionDelay)
	assert.Equal(t, 1000*time.Millisecond, cfg.Execution.BatchDelay)
	assert.Equal(t, 2000*time.Millisecond, cfg.Execution.StartupDelay)
	assert.True(t, cfg.Logging.Enabled)
	assert.Equal(t, 200, cfg.TUI.MaxLogLines)

	assert.Empty(t, cfg.Validate(), "default config must validate")
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		assert.Equal(t, "/custom/config/buildagent", ConfigDir())
		assert.Equal(t, "/custom/config/buildagent/config.yaml", ConfigFile())
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		assert.Equal(t, filepath.Join(home, ".config", "buildagent"), ConfigDir())
	})
}

func TestLoggingConfig_LogDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")

	cfg := LoggingConfig{}
	assert.Equal(t, "/state/buildagent", cfg.LogDir())

	cfg.Dir = "/var/log/ba"
	assert.Equal(t, "/var/log/ba", cfg.LogDir())
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Equal(t, *Default(), *cfg)
}

func TestLoad_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("execution.max_concurrent", 1)
	viper.Set("execution.step_delay_min", "10ms")
	viper.Set("execution.step_delay_max", "20ms")
	viper.Set("questions.reveal_policy", RevealSequential)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Execution.MaxConcurrent)
	assert.Equal(t, 10*time.Millisecond, cfg.Execution.StepDelayMin)
	assert.Equal(t, 20*time.Millisecond, cfg.Execution.StepDelayMax)
	assert.Equal(t, RevealSequential, cfg.Questions.RevealPolicy)
}

func TestLoad_RejectsConcurrencyAboveLimit(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("execution.max_concurrent", 3)

	_, err := Load()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "execution.max_concurrent", verrs[0].Field)
	assert.Equal(t, 3, verrs[0].Value)
	assert.Equal(t, "must be between 1 and 2", verrs[0].Message)
}

func TestLoad_InvalidFallsBackInGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("execution.max_concurrent", 0)

	_, err := Load()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "execution.max_concurrent", verrs[0].Field)

	assert.Equal(t, 2, Get().Execution.MaxConcurrent)
}

func TestValidRevealPolicies(t *testing.T) {
	assert.Equal(t, []string{"batched", "sequential"}, ValidRevealPolicies())
}
