// Package llm drives the conversation with the model: provider-specific
// threads keep the message history in the provider's native format, run the
// tool-use loop against a tool registry, and report token usage.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/tools"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

// Thread represents a conversation thread with an LLM
type Thread interface {
	// Provider returns the provider of the thread
	Provider() string
	// SetState sets the state for the thread
	SetState(s tooltypes.State)
	// GetState returns the current state of the thread
	GetState() tooltypes.State
	// AddUserMessage adds a user message to the thread
	AddUserMessage(message string)
	// SendMessage sends a message to the LLM and processes the response
	SendMessage(ctx context.Context, message string, handler MessageHandler, opt MessageOpt) (finalOutput string, err error)
	// GetUsage returns the current token usage for the thread
	GetUsage() Usage
	// GetMessages returns the accumulated conversation messages
	GetMessages() ([]Message, error)
}

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewThread creates a new thread based on the configured provider. When no
// provider is set, the model name decides: OpenAI-style names go to the
// OpenAI client and everything else defaults to Anthropic.
func NewThread(config Config, registry *tools.Registry) (Thread, error) {
	switch strings.ToLower(config.Provider) {
	case ProviderAnthropic:
		return NewAnthropicThread(config, registry), nil
	case ProviderOpenAI:
		return NewOpenAIThread(config, registry), nil
	case "":
		if isOpenAIModel(config.Model) {
			return NewOpenAIThread(config, registry), nil
		}
		return NewAnthropicThread(config, registry), nil
	default:
		return nil, errors.Errorf("unsupported llm provider %q", config.Provider)
	}
}

func isOpenAIModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range []string{"gpt", "o1", "o3", "o4"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// SendMessageAndGetText is a convenience method for one-shot queries that
// returns the response as a string
func SendMessageAndGetText(ctx context.Context, state tooltypes.State, query string, config Config, registry *tools.Registry, opt MessageOpt) (string, error) {
	thread, err := NewThread(config, registry)
	if err != nil {
		return "", err
	}
	thread.SetState(state)

	handler := &StringCollectorHandler{Silent: true}
	if _, err := thread.SendMessage(ctx, query, handler, opt); err != nil {
		return "", err
	}
	return handler.CollectedText(), nil
}
