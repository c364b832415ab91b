package router

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a conversation. Content must be a non-empty string;
// callers constructing a Session directly are responsible for dropping empty
// turns themselves (the normalize package does this for accepted input).
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is an ordered, finite sequence of Messages.
type Session []Message
