package llm

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchel-sh/satchel/pkg/tools"
)

func TestNewThread(t *testing.T) {
	registry := tools.NewRegistry()

	tests := []struct {
		name         string
		config       Config
		wantProvider string
	}{
		{
			name:         "explicit anthropic provider",
			config:       Config{Provider: "anthropic"},
			wantProvider: ProviderAnthropic,
		},
		{
			name:         "explicit openai provider",
			config:       Config{Provider: "openai"},
			wantProvider: ProviderOpenAI,
		},
		{
			name:         "provider name is case insensitive",
			config:       Config{Provider: "Anthropic"},
			wantProvider: ProviderAnthropic,
		},
		{
			name:         "openai inferred from gpt model",
			config:       Config{Model: "gpt-4.1"},
			wantProvider: ProviderOpenAI,
		},
		{
			name:         "openai inferred from o-series model",
			config:       Config{Model: "o3-mini"},
			wantProvider: ProviderOpenAI,
		},
		{
			name:         "anthropic inferred from claude model",
			config:       Config{Model: "claude-sonnet-4-5-20250929"},
			wantProvider: ProviderAnthropic,
		},
		{
			name:         "anthropic is the default",
			config:       Config{},
			wantProvider: ProviderAnthropic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread, err := NewThread(tt.config, registry)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, thread.Provider())
		})
	}
}

func TestNewThreadUnsupportedProvider(t *testing.T) {
	_, err := NewThread(Config{Provider: "bedrock"}, tools.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported llm provider "bedrock"`)
}

func TestIsOpenAIModel(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-4.1", true},
		{"gpt-4.1-mini", true},
		{"GPT-4.1", true},
		{"o1-preview", true},
		{"o3", true},
		{"o4-mini", true},
		{"claude-sonnet-4-5-20250929", false},
		{"claude-haiku-4-5", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, isOpenAIModel(tt.model))
		})
	}
}

func TestUsageTotalTokens(t *testing.T) {
	usage := Usage{
		InputTokens:              100,
		OutputTokens:             50,
		CacheCreationInputTokens: 30,
		CacheReadInputTokens:     20,
	}
	assert.Equal(t, 200, usage.TotalTokens())

	empty := Usage{}
	assert.Equal(t, 0, empty.TotalTokens())
}

func TestStringCollectorHandler(t *testing.T) {
	handler := &StringCollectorHandler{Silent: true}

	handler.HandleText("first line")
	handler.HandleToolUse("skill", `{"skill_id":"report-writer"}`)
	handler.HandleToolResult("skill", "Skill 'report-writer' activated")
	handler.HandleText("second line")
	handler.HandleDone()

	collected := handler.CollectedText()
	assert.Equal(t, "first line\nsecond line", collected)
}

func TestAnthropicThreadDefaults(t *testing.T) {
	thread := NewAnthropicThread(Config{}, tools.NewRegistry())

	assert.Equal(t, defaultAnthropicModel, thread.config.Model)
	assert.Equal(t, 8192, thread.config.MaxTokens)
	assert.Equal(t, DefaultMaxTurns, thread.config.MaxTurns)
	assert.Equal(t, DefaultRetryConfig, thread.config.Retry)
}

func TestOpenAIThreadDefaults(t *testing.T) {
	thread := NewOpenAIThread(Config{}, tools.NewRegistry())

	assert.Equal(t, defaultOpenAIModel, thread.config.Model)
	assert.Equal(t, 8192, thread.config.MaxTokens)
	assert.Equal(t, DefaultMaxTurns, thread.config.MaxTurns)
	assert.Equal(t, DefaultRetryConfig, thread.config.Retry)
}

func TestAnthropicThreadAddUserMessage(t *testing.T) {
	thread := NewAnthropicThread(Config{}, tools.NewRegistry())

	thread.AddUserMessage("hello")
	thread.AddUserMessage("world")

	messages, err := thread.GetMessages()
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "world", messages[1].Content)
}

func TestAnthropicThreadCacheMessages(t *testing.T) {
	thread := NewAnthropicThread(Config{}, tools.NewRegistry())

	thread.AddUserMessage("first")
	thread.AddUserMessage("second")
	thread.cacheMessages()

	first := thread.messages[0].Content[0].OfText
	require.NotNil(t, first)
	assert.Empty(t, first.CacheControl.Type)

	last := thread.messages[1].Content[0].OfText
	require.NotNil(t, last)
	assert.Equal(t, anthropic.CacheControlEphemeralParam{Type: "ephemeral"}, last.CacheControl)
}

func TestAnthropicThreadUpdateUsage(t *testing.T) {
	thread := NewAnthropicThread(Config{}, tools.NewRegistry())

	thread.updateUsage(&anthropic.Message{
		Usage: anthropic.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 10,
			CacheReadInputTokens:     5,
		},
	})
	thread.updateUsage(&anthropic.Message{
		Usage: anthropic.Usage{
			InputTokens:  30,
			OutputTokens: 20,
		},
	})

	usage := thread.GetUsage()
	assert.Equal(t, 130, usage.InputTokens)
	assert.Equal(t, 70, usage.OutputTokens)
	assert.Equal(t, 10, usage.CacheCreationInputTokens)
	assert.Equal(t, 5, usage.CacheReadInputTokens)
}

func TestOpenAIThreadUpdateUsage(t *testing.T) {
	thread := NewOpenAIThread(Config{}, tools.NewRegistry())

	thread.updateUsage(openai.Usage{PromptTokens: 40, CompletionTokens: 25})
	thread.updateUsage(openai.Usage{PromptTokens: 10, CompletionTokens: 5})

	usage := thread.GetUsage()
	assert.Equal(t, 50, usage.InputTokens)
	assert.Equal(t, 30, usage.OutputTokens)
}

func TestOpenAIThreadGetMessages(t *testing.T) {
	thread := NewOpenAIThread(Config{}, tools.NewRegistry())
	thread.messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "you are a helpful assistant"},
		{Role: openai.ChatMessageRoleUser, Content: "hello"},
		{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{
				{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "skill",
						Arguments: `{"skill_id":"report-writer"}`,
					},
				},
			},
		},
	}

	messages, err := thread.GetMessages()
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Contains(t, messages[1].Content, "report-writer")
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "nil error should not be retryable",
			err:       nil,
			retryable: false,
		},
		{
			name:      "context canceled should not be retryable",
			err:       context.Canceled,
			retryable: false,
		},
		{
			name:      "context deadline exceeded should not be retryable",
			err:       context.DeadlineExceeded,
			retryable: false,
		},
		{
			name:      "generic error should not be retryable",
			err:       errors.New("some random error"),
			retryable: false,
		},
		{
			name:      "api error with 429 should be retryable",
			err:       &openai.APIError{HTTPStatusCode: 429},
			retryable: true,
		},
		{
			name:      "api error with 500 should be retryable",
			err:       &openai.APIError{HTTPStatusCode: 500},
			retryable: true,
		},
		{
			name:      "api error with 400 should be retryable",
			err:       &openai.APIError{HTTPStatusCode: 400},
			retryable: true,
		},
		{
			name:      "request error should be retryable",
			err:       &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
			retryable: true,
		},
		{
			name:      "wrapped context canceled should not be retryable",
			err:       errors.Wrap(context.Canceled, "sending request"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.err))
		})
	}
}

func TestIsRetryableAnthropicError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "nil error should not be retryable",
			err:       nil,
			retryable: false,
		},
		{
			name:      "context canceled should not be retryable",
			err:       context.Canceled,
			retryable: false,
		},
		{
			name:      "context deadline exceeded should not be retryable",
			err:       context.DeadlineExceeded,
			retryable: false,
		},
		{
			name:      "api error with 529 should be retryable",
			err:       &anthropic.Error{StatusCode: 529},
			retryable: true,
		},
		{
			name:      "api error with 429 should be retryable",
			err:       &anthropic.Error{StatusCode: 429},
			retryable: true,
		},
		{
			name:      "transport error should be retryable",
			err:       errors.New("connection reset by peer"),
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableAnthropicError(tt.err))
		})
	}
}
