package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/telemetry"
	"github.com/satchel-sh/satchel/pkg/tools"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicThread implements the Thread interface using Anthropic's Claude API
type AnthropicThread struct {
	client   anthropic.Client
	config   Config
	registry *tools.Registry
	state    tooltypes.State
	messages []anthropic.MessageParam
	usage    *Usage
	mu       sync.Mutex
}

// NewAnthropicThread creates a new thread with Anthropic's Claude API
func NewAnthropicThread(config Config, registry *tools.Registry) *AnthropicThread {
	// Apply defaults if not provided
	if config.Model == "" {
		config.Model = defaultAnthropicModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.MaxTurns == 0 {
		config.MaxTurns = DefaultMaxTurns
	}
	if config.Retry.Attempts == 0 {
		config.Retry = DefaultRetryConfig
	}

	return &AnthropicThread{
		client:   anthropic.NewClient(),
		config:   config,
		registry: registry,
		usage:    &Usage{}, // must be initialised to avoid nil pointer dereference
	}
}

// Provider returns the provider name for this thread.
func (t *AnthropicThread) Provider() string {
	return ProviderAnthropic
}

// SetState sets the state for the thread
func (t *AnthropicThread) SetState(s tooltypes.State) {
	t.state = s
}

// GetState returns the current state of the thread
func (t *AnthropicThread) GetState() tooltypes.State {
	return t.state
}

// AddUserMessage adds a user message to the thread
func (t *AnthropicThread) AddUserMessage(message string) {
	t.messages = append(t.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
}

func (t *AnthropicThread) cacheMessages() {
	// remove cache control from the messages
	for msgIdx, msg := range t.messages {
		for blkIdx, block := range msg.Content {
			if block.OfText != nil {
				block.OfText.CacheControl = anthropic.CacheControlEphemeralParam{}
				t.messages[msgIdx].Content[blkIdx] = block
			}
		}
	}
	if len(t.messages) > 0 {
		lastMsg := t.messages[len(t.messages)-1]
		if len(lastMsg.Content) > 0 && lastMsg.Content[len(lastMsg.Content)-1].OfText != nil {
			lastMsg.Content[len(lastMsg.Content)-1].OfText.CacheControl = anthropic.CacheControlEphemeralParam{
				Type: "ephemeral",
			}
		}
	}
}

// SendMessage sends a message to the LLM and processes the response
func (t *AnthropicThread) SendMessage(
	ctx context.Context,
	message string,
	handler MessageHandler,
	opt MessageOpt,
) (finalOutput string, err error) {
	if opt.PromptCache {
		t.cacheMessages()
	}
	t.AddUserMessage(message)

	// Determine which model to use
	model := t.config.Model
	if opt.UseWeakModel && t.config.WeakModel != "" {
		model = t.config.WeakModel
	}

	// Main interaction loop for handling tool calls
	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return finalOutput, err
		}

		// Prepare message parameters
		messageParams := anthropic.MessageNewParams{
			MaxTokens: int64(t.config.MaxTokens),
			Messages:  t.messages,
			Model:     anthropic.Model(model),
		}
		if t.config.SystemPrompt != "" {
			messageParams.System = []anthropic.TextBlockParam{
				{
					Text: t.config.SystemPrompt,
					CacheControl: anthropic.CacheControlEphemeralParam{
						Type: "ephemeral",
					},
				},
			}
		}
		if !opt.NoToolUse {
			messageParams.Tools = tools.ToAnthropicTools(t.registry.Tools())
		}

		telemetry.AddEvent(ctx, "api_call_start",
			attribute.String("model", model),
			attribute.Int("turn", turn),
		)

		response, err := t.createMessageWithRetry(ctx, messageParams)
		if err != nil {
			return finalOutput, errors.Wrap(err, "error sending message to Anthropic")
		}

		// Add the assistant response to history
		t.messages = append(t.messages, response.ToParam())

		t.updateUsage(response)

		telemetry.AddEvent(ctx, "api_call_complete",
			attribute.Int("input_tokens", int(response.Usage.InputTokens)),
			attribute.Int("output_tokens", int(response.Usage.OutputTokens)),
		)

		// Process the response content blocks
		toolUseCount := 0
		for _, block := range response.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				handler.HandleText(variant.Text)
				finalOutput = variant.Text
			case anthropic.ToolUseBlock:
				toolUseCount++
				input := variant.JSON.Input.Raw()
				handler.HandleToolUse(block.Name, input)

				telemetry.AddEvent(ctx, "tool_execution_start",
					attribute.String("tool_name", block.Name),
				)
				output := t.registry.RunTool(ctx, t.state, block.Name, input)
				telemetry.AddEvent(ctx, "tool_execution_complete",
					attribute.String("tool_name", block.Name),
				)
				handler.HandleToolResult(block.Name, output.AssistantFacing())

				// Add tool result to messages for next API call
				t.messages = append(t.messages, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(block.ID, output.AssistantFacing(), output.IsError()),
				))
			}
		}

		// If no tools were used, we're done
		if toolUseCount == 0 {
			break
		}

		if t.config.MaxTurns > 0 && turn+1 >= t.config.MaxTurns {
			logger.G(ctx).WithField("max_turns", t.config.MaxTurns).Warn("turn budget exhausted, stopping tool use loop")
			break
		}
	}

	handler.HandleDone()
	return finalOutput, nil
}

func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 600
	}

	return true
}

func (t *AnthropicThread) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var response *anthropic.Message

	retryConfig := t.config.Retry
	initialDelay := time.Duration(retryConfig.InitialDelay) * time.Millisecond
	maxDelay := time.Duration(retryConfig.MaxDelay) * time.Millisecond

	var delayType retry.DelayTypeFunc
	switch retryConfig.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	case "exponential":
		fallthrough
	default:
		delayType = retry.BackOffDelay
	}

	err := retry.Do(
		func() error {
			var apiErr error
			response, apiErr = t.client.Messages.New(ctx, params)
			return apiErr
		},
		retry.RetryIf(isRetryableAnthropicError),
		retry.Attempts(uint(retryConfig.Attempts)),
		retry.Delay(initialDelay),
		retry.DelayType(delayType),
		retry.MaxDelay(maxDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", retryConfig.Attempts).Warn("retrying Anthropic API call")
		}),
	)

	return response, err
}

func (t *AnthropicThread) updateUsage(response *anthropic.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.InputTokens += int(response.Usage.InputTokens)
	t.usage.OutputTokens += int(response.Usage.OutputTokens)
	t.usage.CacheCreationInputTokens += int(response.Usage.CacheCreationInputTokens)
	t.usage.CacheReadInputTokens += int(response.Usage.CacheReadInputTokens)
}

// GetUsage returns the current token usage for the thread
func (t *AnthropicThread) GetUsage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.usage
}

// GetMessages returns the accumulated conversation messages
func (t *AnthropicThread) GetMessages() ([]Message, error) {
	result := make([]Message, 0, len(t.messages))

	for _, msg := range t.messages {
		var textParts []string
		for _, block := range msg.Content {
			if block.OfText != nil {
				textParts = append(textParts, block.OfText.Text)
			}
		}
		content := strings.Join(textParts, "\n")
		if content == "" {
			// Tool use and tool result turns have no plain text; keep the
			// raw blocks so the transcript stays complete.
			if raw, err := json.Marshal(msg.Content); err == nil {
				content = string(raw)
			}
		}

		result = append(result, Message{
			Role:    string(msg.Role),
			Content: content,
		})
	}

	return result, nil
}
