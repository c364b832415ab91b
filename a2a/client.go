package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an A2A protocol HTTP+JSON client.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client with the given timeout (0 uses a 60s default).
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// DiscoverAgent fetches an agent's card (GET {agentURL}).
func (c *Client) DiscoverAgent(ctx context.Context, agentURL string) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, agentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: build discover request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: get agent card: %s - %s", resp.Status, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

// SendMessage sends message/send to {agentURL}/message/send, optionally
// continuing an existing task, and returns the resulting Task. If the agent
// answers with a submitted or working task, SendMessage polls it via
// waitForTask until it reaches a terminal state or ctx is cancelled.
func (c *Client) SendMessage(ctx context.Context, agentURL string, message Message) (*Task, error) {
	sendURL := agentURL + "/message/send"

	params := MessageSendParams{Message: message, TaskID: message.TaskID}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("a2a: marshal message/send: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2a: build message/send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: message/send failed: %s - %s", resp.Status, string(respBody))
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("a2a: decode task: %w", err)
	}

	if task.Status.State == TaskStateSubmitted || task.Status.State == TaskStateWorking {
		return c.waitForTask(ctx, agentURL, task.ID)
	}
	return &task, nil
}

// GetTask fetches the current state of a task (GET {agentURL}/tasks/{id}).
func (c *Client) GetTask(ctx context.Context, agentURL, taskID string) (*Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, agentURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: build tasks/get request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: get task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: tasks/get failed: %s - %s", resp.Status, string(body))
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("a2a: decode task: %w", err)
	}
	return &task, nil
}

// waitForTask polls tasks/get until the task reaches a terminal state,
// honouring ctx cancellation at every tick (§5 cancellation threading).
func (c *Client) waitForTask(ctx context.Context, agentURL, taskID string) (*Task, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			task, err := c.GetTask(ctx, agentURL, taskID)
			if err != nil {
				return nil, err
			}
			if task.Status.State.IsTerminal() {
				return task, nil
			}
		}
	}
}
