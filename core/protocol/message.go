// Package protocol defines the conversation data model shared across the
// hub runtime: message roles, the ordered history kept per session, and the
// observation shapes fed back to the model after tool execution.
package protocol

import "fmt"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session's conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ToolCalledNote is the assistant-role record appended to history when a
// tool has been invoked, so the model sees its own action on the next
// planning step.
func ToolCalledNote(tool string, args map[string]any) Message {
	return Message{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("(tool %s called with %v)", tool, args),
	}
}

// ToolResultNote is the user-role observation carrying a tool result. The
// user role is deliberate: the model treats it as fresh input context rather
// than its own prior turn.
func ToolResultNote(tool, result string) Message {
	return Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("TOOL_RESULT(%s):\n%s", tool, result),
	}
}

// UnsupportedToolNote is the synthetic assistant observation recorded when
// the model asked for a tool outside the allow-list.
func UnsupportedToolNote(tool string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("(unsupported tool '%s')", tool),
	}
}
