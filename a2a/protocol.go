// Package a2a implements the wire types and HTTP+JSON transport of the
// Agent-to-Agent message protocol: https://a2a-protocol.org/latest/specification/
package a2a

import "time"

// ProtocolVersion is the A2A protocol version this package speaks.
const ProtocolVersion = "1.0"

// AgentCard is an agent's capability card, returned by discovery (Section 5).
type AgentCard struct {
	Name               string             `json:"name"`
	URL                string             `json:"url"`
	Version            string             `json:"version"`
	Description        string             `json:"description"`
	Provider           *AgentProvider     `json:"provider,omitempty"`
	PreferredTransport string             `json:"preferredTransport"`
	Capabilities       AgentCapabilities  `json:"capabilities"`
	Skills             []AgentSkill       `json:"skills,omitempty"`
}

// AgentProvider identifies who stands behind an agent.
type AgentProvider struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities describes what an agent can do.
type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
	MultiTurn bool `json:"multiTurn"`
}

// AgentSkill is one capability an agent advertises.
type AgentSkill struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Task is a unit of work (Section 6.1).
type Task struct {
	ID       string       `json:"id"`
	Status   TaskStatus   `json:"status"`
	Messages []Message    `json:"messages"`
	Error    *TaskError   `json:"error,omitempty"`
	Metadata TaskMetadata `json:"metadata,omitempty"`
}

// TaskStatus is the status sub-object of a Task (Section 6.2).
type TaskStatus struct {
	State     TaskState `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Reason    string    `json:"reason,omitempty"`
}

// TaskState is the state machine of a Task (Section 6.3).
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input_required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
)

// IsTerminal reports whether no further transitions are expected.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// TaskMetadata carries opaque task metadata.
type TaskMetadata map[string]any

// TaskError describes why a Task failed.
type TaskError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageRole is the sender role of a Message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one conversational turn on the wire.
//
// TaskID and ReferenceTaskIDs are an extension beyond the bare protocol:
// the router's per-parent sticky-task correlation (§4.2) needs to stamp
// every outgoing message with the child task id it belongs to and the full
// set of sibling task ids the caller has already spawned, so these travel
// as first-class fields rather than being smuggled through Metadata.
type Message struct {
	Role             MessageRole `json:"role"`
	Parts            []Part      `json:"parts"`
	TaskID           string      `json:"taskId,omitempty"`
	ReferenceTaskIDs []string    `json:"referenceTaskIds,omitempty"`
}

// Part is a union-type message content fragment.
type Part struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
}

// PartType discriminates Part's content.
type PartType string

const (
	PartTypeText PartType = "text"
)

// MessageSendParams are the parameters of message/send (Section 7.1.1).
type MessageSendParams struct {
	Message Message `json:"message"`
	TaskID  string  `json:"taskId,omitempty"`
}

// TaskCancelParams are the parameters of tasks/cancel (Section 7.4.1).
type TaskCancelParams struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

// TextMessage builds a single-part text Message.
func TextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartTypeText, Text: text}}}
}

// ExtractText concatenates every assistant text part of a Task's messages.
func ExtractText(task *Task) string {
	if task == nil {
		return ""
	}
	var out string
	for _, msg := range task.Messages {
		if msg.Role != MessageRoleAssistant {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type == PartTypeText {
				if out != "" {
					out += "\n"
				}
				out += part.Text
			}
		}
	}
	return out
}
