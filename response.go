package router

import "github.com/mark3labs/mcp-go/mcp"

// Response is the discriminated union of ToolResponse and AgentResponse
// from §3. Identity invariant: Response.ID == the originating Request.ID.
//
// For a tool response, ToolResult carries the validated (or synthesized
// error) MCP CallToolResult. For an agent response, AgentResult carries the
// success value or failure string returned by the underlying sendMessage
// call. Error, when non-nil, is the captured adapter-level failure (§7,
// AdapterFailure) — it is carried alongside the response, never thrown.
type Response struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	URI  string `json:"uri"`

	ToolResult  *mcp.CallToolResult `json:"toolResult,omitempty"`
	AgentResult string               `json:"agentResult,omitempty"`

	Error error `json:"-"`
}

// ErrorText returns a human-readable rendering of Error, or "" if the
// response represents success.
func (r Response) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}
