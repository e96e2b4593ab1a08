package llm

// Usage represents token usage information from LLM API calls
type Usage struct {
	InputTokens              int // Regular input tokens count
	OutputTokens             int // Output tokens generated
	CacheCreationInputTokens int // Tokens used for creating cache entries
	CacheReadInputTokens     int // Tokens used for reading from cache
}

// TotalTokens returns the total number of tokens used
func (u *Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageOpt represents options for sending messages
type MessageOpt struct {
	// PromptCache indicates if prompt caching should be used
	PromptCache bool
	// UseWeakModel allows temporarily overriding the model for this message
	UseWeakModel bool
	// NoToolUse indicates that no tool use should be performed
	NoToolUse bool
}
