package llm

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// RetryConfig controls the retry behaviour for LLM API calls
type RetryConfig struct {
	Attempts     int    `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	InitialDelay int    `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"` // milliseconds
	MaxDelay     int    `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`             // milliseconds
	BackoffType  string `mapstructure:"backoff_type" json:"backoff_type" yaml:"backoff_type"`    // "fixed" or "exponential"
}

// DefaultRetryConfig provides sensible retry defaults
var DefaultRetryConfig = RetryConfig{
	Attempts:     3,
	InitialDelay: 1000,
	MaxDelay:     10000,
	BackoffType:  "exponential",
}

// ProfileConfig holds a named configuration overlay
type ProfileConfig map[string]any

// Config holds the configuration for the LLM client
type Config struct {
	Provider     string                   `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model        string                   `mapstructure:"model" json:"model" yaml:"model"`
	WeakModel    string                   `mapstructure:"weak_model" json:"weak_model" yaml:"weak_model"`
	MaxTokens    int                      `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
	MaxTurns     int                      `mapstructure:"max_turns" json:"max_turns" yaml:"max_turns"`
	BaseURL      string                   `mapstructure:"base_url" json:"base_url" yaml:"base_url"` // OpenAI-compatible endpoint override
	SystemPrompt string                   `mapstructure:"system_prompt" json:"system_prompt" yaml:"system_prompt"`
	Retry        RetryConfig              `mapstructure:"retry" json:"retry" yaml:"retry"`
	Aliases      map[string]string        `mapstructure:"aliases" json:"aliases" yaml:"aliases"`
	Profiles     map[string]ProfileConfig `mapstructure:"profiles" json:"profiles" yaml:"profiles"`
}

// DefaultMaxTurns bounds the tool-use loop of a single message exchange.
const DefaultMaxTurns = 10

func GetConfigFromViper() (Config, error) {
	config, err := loadViperConfig()
	if err != nil {
		return config, err
	}

	// Clean up profiles - remove default profile if it exists
	if config.Profiles != nil {
		delete(config.Profiles, "default")
	}

	// Apply active profile if set
	profileName := getActiveProfile()
	if profileName != "" && config.Profiles != nil {
		if profile, exists := config.Profiles[profileName]; exists {
			if err := applyProfile(&config, profile); err != nil {
				return config, err
			}
		}
	}

	// Resolve model aliases
	config.Model = resolveModelAlias(config.Model, config.Aliases)
	config.WeakModel = resolveModelAlias(config.WeakModel, config.Aliases)

	return config, nil
}

func loadViperConfig() (Config, error) {
	var config Config

	// Use viper's automatic unmarshaling with mapstructure tags
	if err := viper.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}

	// Apply retry defaults if not set
	if config.Retry.Attempts == 0 {
		config.Retry = DefaultRetryConfig
	}

	if config.MaxTurns == 0 {
		config.MaxTurns = DefaultMaxTurns
	}

	return config, nil
}

func getActiveProfile() string {
	profile := viper.GetString("profile")
	if profile == "default" || profile == "" {
		return ""
	}
	return profile
}

func applyProfile(config *Config, profile ProfileConfig) error {
	// Use mapstructure to decode profile into config, merging values
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		ZeroFields:       false, // Don't overwrite with zero values
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}

	// Apply profile settings on top of existing config
	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}

	return nil
}

func resolveModelAlias(model string, aliases map[string]string) string {
	if model == "" {
		return model
	}
	if resolved, ok := aliases[model]; ok {
		return resolved
	}
	return model
}
