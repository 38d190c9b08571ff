package domain

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
}

// ResponseSchema asks the completion service for JSON output matching Schema.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

type CompletionRequest struct {
	Model          string
	Messages       []ConversationTurn
	Tools          []ToolDefinition
	Temperature    *float64
	ResponseSchema *ResponseSchema
}

type CompletionUsage struct {
	PromptTokens     int
	CompletionTokens int
}

type CompletionResult struct {
	Message      ConversationTurn
	Refusal      string
	FinishReason string
	Model        string
	Usage        CompletionUsage
}
