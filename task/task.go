// Package task supplies the in-process task store backing the
// orchestrator's agent-as-a-service engine (§4.8): each inbound message
// becomes a Task, and a later Task can reference earlier ones so the
// engine can harvest conversation history across them.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/the-artinet-project/router"
)

// State is a task's position in its state machine.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions are expected.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Status is a task's current state plus the message that produced it.
type Status struct {
	State     State
	Message   *router.Message
	Timestamp time.Time
	Error     error
}

// Task is one unit of work submitted to the agent-as-a-service engine.
// ReferenceTaskIDs names earlier tasks whose history this one continues
// (the caller-supplied referenceTaskIds of an inbound A2A message).
type Task struct {
	ID               string
	ContextID        string
	ReferenceTaskIDs []string

	mu        sync.RWMutex
	status    Status
	history   []router.Message
	createdAt time.Time
	updatedAt time.Time
}

// New creates a task in StateSubmitted.
func New(contextID string, referenceTaskIDs []string) *Task {
	now := time.Now()
	return &Task{
		ID:               uuid.New().String(),
		ContextID:        contextID,
		ReferenceTaskIDs: referenceTaskIDs,
		status:           Status{State: StateSubmitted, Timestamp: now},
		createdAt:        now,
		updatedAt:        now,
	}
}

// SetStatus transitions the task to state, recording message and err.
func (t *Task) SetStatus(state State, message *router.Message, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{State: state, Message: message, Timestamp: time.Now(), Error: err}
	t.updatedAt = time.Now()
}

// GetStatus returns the task's current status.
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// AppendHistory records one more message against the task.
func (t *Task) AppendHistory(msg router.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, msg)
	t.updatedAt = time.Now()
}

// Snapshot returns a copy of the task's history so far.
func (t *Task) Snapshot() []router.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]router.Message, len(t.history))
	copy(out, t.history)
	return out
}

// Service manages the task store (§4.8's task history harvesting).
type Service interface {
	Create(ctx context.Context, contextID string, referenceTaskIDs []string) (*Task, error)
	Get(ctx context.Context, taskID string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	List(ctx context.Context, contextID string) ([]*Task, error)
}

// InMemoryService is the only Service implementation this module ships:
// durable task storage is a spec non-goal (§1).
type InMemoryService struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewInMemoryService returns an empty in-memory task store.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{tasks: make(map[string]*Task)}
}

func (s *InMemoryService) Create(_ context.Context, contextID string, referenceTaskIDs []string) (*Task, error) {
	t := New(contextID, referenceTaskIDs)
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

func (s *InMemoryService) Get(_ context.Context, taskID string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

func (s *InMemoryService) Update(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *InMemoryService) List(_ context.Context, contextID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.ContextID == contextID {
			out = append(out, t)
		}
	}
	return out, nil
}

// History harvests the non-empty messages of t and every task it
// references, in reference order, t's own history last (§4.8 "harvested
// from the current task and its referenced tasks, filtering empties").
// An unresolvable reference is skipped rather than failing the harvest.
func History(ctx context.Context, svc Service, t *Task) []router.Message {
	var out []router.Message
	for _, refID := range t.ReferenceTaskIDs {
		ref, err := svc.Get(ctx, refID)
		if err != nil {
			continue
		}
		out = append(out, nonEmpty(ref.Snapshot())...)
	}
	return append(out, nonEmpty(t.Snapshot())...)
}

func nonEmpty(msgs []router.Message) []router.Message {
	out := make([]router.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content != "" {
			out = append(out, m)
		}
	}
	return out
}

// TaskError is a task-store error.
type TaskError struct {
	Code    string
	Message string
}

func (e *TaskError) Error() string { return e.Message }

var ErrTaskNotFound = &TaskError{Code: "task_not_found", Message: "task not found"}
