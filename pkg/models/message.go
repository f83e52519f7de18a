package models

// Message roles. Stored in a framework-independent format so the
// conversation history can later move to external storage unchanged.
const (
	RoleHuman  = "human"
	RoleSystem = "system"
	RoleAI     = "ai"
)

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HumanMessage builds a human message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AIMessage builds an assistant message.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}
