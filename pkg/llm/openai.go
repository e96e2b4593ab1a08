package llm

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/telemetry"
	"github.com/satchel-sh/satchel/pkg/tools"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

const defaultOpenAIModel = "gpt-4.1"

// OpenAIThread implements the Thread interface using OpenAI's API
type OpenAIThread struct {
	client   *openai.Client
	config   Config
	registry *tools.Registry
	state    tooltypes.State
	messages []openai.ChatCompletionMessage
	usage    *Usage
	mu       sync.Mutex
}

// NewOpenAIThread creates a new thread with OpenAI's API
func NewOpenAIThread(config Config, registry *tools.Registry) *OpenAIThread {
	// Apply defaults if not provided
	if config.Model == "" {
		config.Model = defaultOpenAIModel
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

	clientConfig := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIThread{
		client:   openai.NewClientWithConfig(clientConfig),
		config:   config,
		registry: registry,
		usage:    &Usage{},
	}
}

// Provider returns the provider name for this thread.
func (t *OpenAIThread) Provider() string {
	return ProviderOpenAI
}

// SetState sets the state for the thread
func (t *OpenAIThread) SetState(s tooltypes.State) {
	t.state = s
}

// GetState returns the current state of the thread
func (t *OpenAIThread) GetState() tooltypes.State {
	return t.state
}

// AddUserMessage adds a user message to the thread
func (t *OpenAIThread) AddUserMessage(message string) {
	t.messages = append(t.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
}

// SendMessage sends a message to the LLM and processes the response
func (t *OpenAIThread) SendMessage(
	ctx context.Context,
	message string,
	handler MessageHandler,
	opt MessageOpt,
) (finalOutput string, err error) {
	if len(t.messages) == 0 && t.config.SystemPrompt != "" {
		t.messages = append(t.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: t.config.SystemPrompt,
		})
	}
	t.AddUserMessage(message)

	model := t.config.Model
	if opt.UseWeakModel && t.config.WeakModel != "" {
		model = t.config.WeakModel
	}

	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return finalOutput, err
		}

		output, toolsUsed, err := t.processMessageExchange(ctx, handler, model, opt, turn)
		if err != nil {
			return finalOutput, err
		}
		if output != "" {
			finalOutput = output
		}

		if !toolsUsed {
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

// processMessageExchange handles one completion round. The second return
// value reports whether tool calls were made and another round is needed.
func (t *OpenAIThread) processMessageExchange(
	ctx context.Context,
	handler MessageHandler,
	model string,
	opt MessageOpt,
	turn int,
) (string, bool, error) {
	var finalOutput string

	requestParams := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  t.messages,
		MaxTokens: t.config.MaxTokens,
	}

	// Add tool definitions if tool use is enabled
	if !opt.NoToolUse {
		availableTools := t.registry.Tools()
		if len(availableTools) > 0 {
			requestParams.Tools = tools.ToOpenAITools(availableTools)
			requestParams.ToolChoice = "auto"
		}
	}

	telemetry.AddEvent(ctx, "api_call_start",
		attribute.String("model", model),
		attribute.Int("turn", turn),
	)

	response, err := t.createChatCompletionWithRetry(ctx, requestParams)
	if err != nil {
		return "", false, errors.Wrap(err, "error sending message to OpenAI")
	}

	telemetry.AddEvent(ctx, "api_call_complete",
		attribute.Int("prompt_tokens", response.Usage.PromptTokens),
		attribute.Int("completion_tokens", response.Usage.CompletionTokens),
	)

	t.updateUsage(response.Usage)

	if len(response.Choices) == 0 {
		return "", false, errors.New("no response choices returned from OpenAI")
	}

	// Add the assistant response to history
	assistantMessage := response.Choices[0].Message
	t.messages = append(t.messages, assistantMessage)

	if content := assistantMessage.Content; content != "" {
		handler.HandleText(content)
		finalOutput = content
	}

	toolCalls := assistantMessage.ToolCalls
	if len(toolCalls) == 0 {
		return finalOutput, false, nil
	}

	// Process tool calls
	for _, toolCall := range toolCalls {
		handler.HandleToolUse(toolCall.Function.Name, toolCall.Function.Arguments)

		telemetry.AddEvent(ctx, "tool_execution_start",
			attribute.String("tool_name", toolCall.Function.Name),
		)
		output := t.registry.RunTool(ctx, t.state, toolCall.Function.Name, toolCall.Function.Arguments)
		telemetry.AddEvent(ctx, "tool_execution_complete",
			attribute.String("tool_name", toolCall.Function.Name),
		)

		handler.HandleToolResult(toolCall.Function.Name, output.AssistantFacing())

		// Add tool result to messages for next API call
		t.messages = append(t.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    output.AssistantFacing(),
			ToolCallID: toolCall.ID,
		})
	}

	return finalOutput, true, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		statusCode := apiErr.HTTPStatusCode
		return statusCode >= 400 && statusCode < 600
	}

	var httpErr *openai.RequestError
	if errors.As(err, &httpErr) {
		return true
	}

	return false
}

func (t *OpenAIThread) createChatCompletionWithRetry(ctx context.Context, requestParams openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var response openai.ChatCompletionResponse

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
			response, apiErr = t.client.CreateChatCompletion(ctx, requestParams)
			return apiErr
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(retryConfig.Attempts)),
		retry.Delay(initialDelay),
		retry.DelayType(delayType),
		retry.MaxDelay(maxDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", retryConfig.Attempts).Warn("retrying OpenAI API call")
		}),
	)

	return response, err
}

func (t *OpenAIThread) updateUsage(usage openai.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.InputTokens += usage.PromptTokens
	t.usage.OutputTokens += usage.CompletionTokens
}

// GetUsage returns the current token usage for the thread
func (t *OpenAIThread) GetUsage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.usage
}

// GetMessages returns the accumulated conversation messages
func (t *OpenAIThread) GetMessages() ([]Message, error) {
	result := make([]Message, 0, len(t.messages))

	for _, msg := range t.messages {
		// Skip system messages
		if msg.Role == openai.ChatMessageRoleSystem {
			continue
		}

		content := msg.Content

		// Handle tool calls
		if len(msg.ToolCalls) > 0 {
			toolCallContent, _ := json.Marshal(msg.ToolCalls)
			content = string(toolCallContent)
		}

		result = append(result, Message{
			Role:    msg.Role,
			Content: content,
		})
	}

	return result, nil
}
