package domain

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a function invocation requested by the completion service.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ConversationTurn is one entry of the caller-owned chat history.
// A tool turn carries the ToolCallID of the call it answers.
type ConversationTurn struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func TextTurn(role Role, content string) ConversationTurn {
	return ConversationTurn{Role: role, Content: &content}
}

func (t ConversationTurn) Text() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

func (t ConversationTurn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

type ChatResponse struct {
	Blocks  []Block            `json:"blocks"`
	Context []ConversationTurn `json:"context"`

	ToolsInvoked []string `json:"-"`
}
