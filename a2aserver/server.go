// Package a2aserver exposes an orchestrator's agent-as-a-service engine
// (§4.8's `agent` property) over the Agent-to-Agent HTTP+JSON transport,
// matching the message/send and tasks/get route shapes of
// pkg/a2a/server.go so any A2A client (including this module's own
// agentadapter, via a2a.Client) can call the orchestrator as a remote
// agent.
package a2aserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/a2a"
	"github.com/the-artinet-project/router/orchestrator"
	"github.com/the-artinet-project/router/task"
)

// Server serves one orchestrator as a single named A2A agent.
type Server struct {
	orc     *orchestrator.Orchestrator
	agentID string
	baseURL string

	httpServer *http.Server
}

// New builds a Server. agentID names the single route this server exposes
// (`/agents/{agentID}/...`); baseURL is stamped onto the derived agent
// card's URL field.
func New(orc *orchestrator.Orchestrator, agentID, baseURL string) *Server {
	return &Server{orc: orc, agentID: agentID, baseURL: baseURL}
}

// Start runs the HTTP server on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/agents", s.handleListAgents)
	mux.HandleFunc("/agents/", s.handleAgentRoutes)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, []a2a.AgentCard{s.card()})
}

func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "agent id required", http.StatusBadRequest)
		return
	}
	if parts[0] != s.agentID {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetAgentCard(w, r)
	case len(parts) == 3 && parts[1] == "message" && parts[2] == "send":
		s.handleMessageSend(w, r)
	case len(parts) == 3 && parts[1] == "tasks":
		s.handleTaskGet(w, r, parts[2])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleGetAgentCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.card())
}

// handleMessageSend implements message/send: it runs the request
// synchronously through Orchestrator.Execute and returns the resulting
// terminal Task, rather than returning a submitted/working Task and
// advancing it in the background, since this module has no standalone
// streaming or resubscription surface to observe that transition with.
func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params a2a.MessageSendParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg := router.Message{Role: fromMessageRole(params.Message.Role), Content: extractText(params.Message)}
	t, err := s.orc.Execute(r.Context(), params.Message.TaskID, params.Message.ReferenceTaskIDs, msg)
	if t == nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, toA2ATask(t))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, err := s.orc.Tasks().Get(r.Context(), taskID)
	if err != nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toA2ATask(t))
}

func (s *Server) card() a2a.AgentCard {
	info := s.orc.AgentCard(context.Background())
	card := a2a.AgentCard{
		Name:               info.Name,
		URL:                fmt.Sprintf("%s/agents/%s", s.baseURL, s.agentID),
		Description:        info.Description,
		PreferredTransport: "http+json",
		Capabilities:       a2a.AgentCapabilities{MultiTurn: true},
	}
	for _, sk := range info.Skills {
		card.Skills = append(card.Skills, a2a.AgentSkill{Name: sk.Name, Description: sk.Description, Tags: sk.Tags})
	}
	return card
}

func toA2ATask(t *task.Task) *a2a.Task {
	status := t.GetStatus()
	out := &a2a.Task{
		ID: t.ID,
		Status: a2a.TaskStatus{
			State: taskState(status.State),
		},
	}
	for _, m := range t.Snapshot() {
		out.Messages = append(out.Messages, a2a.TextMessage(toMessageRole(m.Role), m.Content))
	}
	if status.Error != nil {
		out.Error = &a2a.TaskError{Code: "execution_failed", Message: status.Error.Error()}
	}
	return out
}

func taskState(s task.State) a2a.TaskState {
	switch s {
	case task.StateSubmitted:
		return a2a.TaskStateSubmitted
	case task.StateWorking:
		return a2a.TaskStateWorking
	case task.StateCompleted:
		return a2a.TaskStateCompleted
	case task.StateFailed:
		return a2a.TaskStateFailed
	case task.StateCancelled:
		return a2a.TaskStateCanceled
	default:
		return a2a.TaskStateSubmitted
	}
}

func fromMessageRole(r a2a.MessageRole) router.Role {
	if r == a2a.MessageRoleAssistant {
		return router.RoleAssistant
	}
	return router.RoleUser
}

func toMessageRole(r router.Role) a2a.MessageRole {
	if r == router.RoleAssistant {
		return a2a.MessageRoleAssistant
	}
	return a2a.MessageRoleUser
}

func extractText(m a2a.Message) string {
	var out string
	for _, p := range m.Parts {
		if p.Type == a2a.PartTypeText {
			out += p.Text
		}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
