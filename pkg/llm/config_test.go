package llm

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigFromViper(t *testing.T) {
	// Setup
	viper.Reset()
	viper.Set("provider", "anthropic")
	viper.Set("model", "test-model")
	viper.Set("max_tokens", 1234)

	// Execute
	config, err := GetConfigFromViper()
	require.NoError(t, err)

	// Verify
	assert.Equal(t, "anthropic", config.Provider)
	assert.Equal(t, "test-model", config.Model)
	assert.Equal(t, 1234, config.MaxTokens)
}

func TestGetConfigFromViperDefaults(t *testing.T) {
	// Setup
	viper.Reset()

	// Execute
	config, err := GetConfigFromViper()
	require.NoError(t, err)

	// Verify
	assert.Empty(t, config.Model)
	assert.Zero(t, config.MaxTokens)
	assert.Equal(t, DefaultRetryConfig, config.Retry)
	assert.Equal(t, DefaultMaxTurns, config.MaxTurns)
}

func TestGetConfigFromViperRetryOverride(t *testing.T) {
	viper.Reset()
	viper.Set("retry.attempts", 5)
	viper.Set("retry.initial_delay", 200)
	viper.Set("retry.max_delay", 2000)
	viper.Set("retry.backoff_type", "fixed")

	config, err := GetConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, 5, config.Retry.Attempts)
	assert.Equal(t, 200, config.Retry.InitialDelay)
	assert.Equal(t, 2000, config.Retry.MaxDelay)
	assert.Equal(t, "fixed", config.Retry.BackoffType)
}

func TestGetConfigFromViperWithAliases(t *testing.T) {
	tests := []struct {
		name            string
		configData      map[string]interface{}
		expectedModel   string
		expectedAliases map[string]string
	}{
		{
			name: "loads aliases from config",
			configData: map[string]interface{}{
				"provider":   "anthropic",
				"model":      "claude-sonnet-4-5-20250929",
				"max_tokens": 8192,
				"aliases": map[string]interface{}{
					"sonnet-45": "claude-sonnet-4-5-20250929",
					"haiku-45":  "claude-haiku-4-5-20251001",
					"gpt41":     "gpt-4.1",
				},
			},
			expectedModel: "claude-sonnet-4-5-20250929",
			expectedAliases: map[string]string{
				"sonnet-45": "claude-sonnet-4-5-20250929",
				"haiku-45":  "claude-haiku-4-5-20251001",
				"gpt41":     "gpt-4.1",
			},
		},
		{
			name: "resolves model alias",
			configData: map[string]interface{}{
				"provider": "anthropic",
				"model":    "sonnet-45",
				"aliases": map[string]interface{}{
					"sonnet-45": "claude-sonnet-4-5-20250929",
				},
			},
			expectedModel: "claude-sonnet-4-5-20250929",
			expectedAliases: map[string]string{
				"sonnet-45": "claude-sonnet-4-5-20250929",
			},
		},
		{
			name: "handles missing aliases config",
			configData: map[string]interface{}{
				"provider":   "anthropic",
				"model":      "claude-sonnet-4-5-20250929",
				"max_tokens": 8192,
			},
			expectedModel:   "claude-sonnet-4-5-20250929",
			expectedAliases: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			for key, value := range tt.configData {
				viper.Set(key, value)
			}

			config, err := GetConfigFromViper()
			require.NoError(t, err)

			assert.Equal(t, tt.expectedAliases, config.Aliases)
			assert.Equal(t, tt.expectedModel, config.Model)
		})
	}
}

func TestGetConfigFromViperWithProfile(t *testing.T) {
	viper.Reset()
	viper.Set("provider", "anthropic")
	viper.Set("model", "claude-sonnet-4-5-20250929")
	viper.Set("max_tokens", 8192)
	viper.Set("profile", "fast")
	viper.Set("profiles", map[string]interface{}{
		"fast": map[string]interface{}{
			"model":      "claude-haiku-4-5-20251001",
			"max_tokens": 4096,
		},
	})

	config, err := GetConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5-20251001", config.Model)
	assert.Equal(t, 4096, config.MaxTokens)
	// Fields the profile does not mention keep their base values
	assert.Equal(t, "anthropic", config.Provider)
}

func TestGetConfigFromViperProfileDoesNotZeroFields(t *testing.T) {
	viper.Reset()
	viper.Set("model", "claude-sonnet-4-5-20250929")
	viper.Set("max_tokens", 8192)
	viper.Set("profile", "sparse")
	viper.Set("profiles", map[string]interface{}{
		"sparse": map[string]interface{}{
			"max_turns": 3,
		},
	})

	config, err := GetConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, 3, config.MaxTurns)
	assert.Equal(t, "claude-sonnet-4-5-20250929", config.Model)
	assert.Equal(t, 8192, config.MaxTokens)
}

func TestGetConfigFromViperDefaultProfileIgnored(t *testing.T) {
	viper.Reset()
	viper.Set("model", "claude-sonnet-4-5-20250929")
	viper.Set("profile", "default")
	viper.Set("profiles", map[string]interface{}{
		"default": map[string]interface{}{
			"model": "something-else",
		},
	})

	config, err := GetConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5-20250929", config.Model)
}

func TestResolveModelAlias(t *testing.T) {
	aliases := map[string]string{
		"sonnet-45": "claude-sonnet-4-5-20250929",
	}

	tests := []struct {
		name     string
		model    string
		aliases  map[string]string
		expected string
	}{
		{name: "alias resolves", model: "sonnet-45", aliases: aliases, expected: "claude-sonnet-4-5-20250929"},
		{name: "non alias passes through", model: "gpt-4.1", aliases: aliases, expected: "gpt-4.1"},
		{name: "nil aliases", model: "sonnet-45", aliases: nil, expected: "sonnet-45"},
		{name: "empty model", model: "", aliases: aliases, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolveModelAlias(tt.model, tt.aliases)
			assert.Equal(t, tt.expected, result)
		})
	}
}
