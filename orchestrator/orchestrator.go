// Package orchestrator implements §4.8: the facade that composes the
// Manager, Monitor, and reactive loop into the library's one entry point
// (Connect), plus the Add registration surface and the
// agent-as-a-service engine a2aserver exposes over HTTP. Add returns an
// error rather than the Orchestrator, so registrations are not chained.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/a2a"
	"github.com/the-artinet-project/router/agentadapter"
	"github.com/the-artinet-project/router/manager"
	"github.com/the-artinet-project/router/monitor"
	"github.com/the-artinet-project/router/normalize"
	"github.com/the-artinet-project/router/pkg/config"
	"github.com/the-artinet-project/router/reactiveloop"
	"github.com/the-artinet-project/router/task"
	"github.com/the-artinet-project/router/tooladapter"
)

// AgentHandle registers an existing remote A2A endpoint (§4.8 add()'s
// "handle to an existing A2A agent/client" case). Client defaults to a
// 60s-timeout a2a.Client if nil.
type AgentHandle struct {
	URI      string
	AgentURL string
	Client   *a2a.Client
}

// LocalAgentSpec registers an in-process agent engine (§4.8 add()'s
// "create-agent spec (has an engine field)" case).
type LocalAgentSpec struct {
	URI    string
	Engine agentadapter.LocalEngine
}

// ToolSpec registers an MCP stdio subprocess (§4.8 add()'s "stdio
// subprocess spec (has a command field)" case).
type ToolSpec struct {
	URI     string
	Command string
	Args    []string
	Env     map[string]string
}

// Config configures a new Orchestrator.
type Config struct {
	// ModelID identifies the backing LLM to the provider and names the
	// derived agent card (`{ModelID}-agent`).
	ModelID string
	// Provider is the LLM round-trip function every Connect/Execute call
	// drives through the reactive loop.
	Provider router.Provider
	// Concurrency bounds Manager.Call fan-out; <= 0 uses
	// config.ConcurrencyFromEnv() (DEFAULT_CONCURRENCY, §6).
	Concurrency int
	// Iterations is the reactive loop's per-call budget; <= 0 uses
	// config.IterationsFromEnv() (DEFAULT_ITERATIONS, §6).
	Iterations int
}

// Orchestrator composes the Manager, Monitor and reactive loop behind the
// public Connect/Add/subscription surface of §4.8.
type Orchestrator struct {
	modelID    string
	provider   router.Provider
	iterations int

	mgr     *manager.Manager
	mon     *monitor.Monitor
	tasks   *router.TaskMap
	taskSvc task.Service

	addMu sync.Mutex
}

// New constructs an Orchestrator. Service registration happens afterward
// via Add.
func New(cfg Config) *Orchestrator {
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = config.IterationsFromEnv()
	}
	return &Orchestrator{
		modelID:    cfg.ModelID,
		provider:   cfg.Provider,
		iterations: iterations,
		mgr:        manager.New(cfg.Concurrency),
		mon:        monitor.New(),
		tasks:      router.NewTaskMap(),
		taskSvc:    task.NewInMemoryService(),
	}
}

// Add registers one service definition (AgentHandle, LocalAgentSpec, or
// ToolSpec). Concurrent Add calls are serialized so a subsequent Connect
// always observes every Add that returned before it started (§4.8's
// "serialises concurrent additions"); Go's synchronous call semantics make
// the promise-chaining the distilled source uses for this unnecessary.
// An unrecognized definition type fails synchronously with a type error.
func (o *Orchestrator) Add(def any) error {
	o.addMu.Lock()
	defer o.addMu.Unlock()

	switch v := def.(type) {
	case AgentHandle:
		client := v.Client
		if client == nil {
			client = a2a.NewClient(0)
		}
		o.mgr.Set(v.URI, agentadapter.Wrap(v.URI, v.AgentURL, client))
	case LocalAgentSpec:
		o.mgr.Set(v.URI, agentadapter.NewLocal(v.URI, v.Engine))
	case ToolSpec:
		o.mgr.Set(v.URI, tooladapter.New(v.URI, tooladapter.Config{
			Command: v.Command, Args: v.Args, Env: v.Env,
		}))
	default:
		return fmt.Errorf("orchestrator: add: unrecognized service definition %T", def)
	}
	return nil
}

// Close stops every registered callable in parallel (§6 "close()").
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.mgr.Stop(ctx)
}

// OnUpdate subscribes to every update published across every active call's
// Monitor context. It returns an unsubscribe func.
func (o *Orchestrator) OnUpdate(fn func(state, update any)) func() {
	return o.mon.OnUpdate(fn)
}

// OnError subscribes to every error published across every active call.
func (o *Orchestrator) OnError(fn func(err error, state any)) func() {
	return o.mon.OnError(fn)
}

// Connect runs one turn of §4.8: normalize input, discover registered
// services, drive the reactive loop, and extract the final assistant text.
func (o *Orchestrator) Connect(ctx context.Context, input any) (string, error) {
	session, err := normalize.Input(input)
	if err != nil {
		return "", err
	}

	parentTaskID := uuid.New().String()
	monCtx := o.mon.Create(parentTaskID)
	defer o.mon.Delete(parentTaskID)

	resp, err := o.roundTrip(ctx, parentTaskID, session, monCtx)
	if err != nil {
		monCtx.PublishError(err, nil)
		return "", err
	}
	return normalize.FinalText(resp)
}

// Execute runs the agent-as-a-service engine for one inbound A2A message
// (§4.8's `agent` property): SUBMITTED, then WORKING while the loop runs
// with the new message plus history harvested from the tasks named in
// referenceTaskIDs (filtering empties), then COMPLETED with the final text, or FAILED
// on a ProviderFailure/Cancellation.
func (o *Orchestrator) Execute(ctx context.Context, contextID string, referenceTaskIDs []string, msg router.Message) (*task.Task, error) {
	t, err := o.taskSvc.Create(ctx, contextID, referenceTaskIDs)
	if err != nil {
		return nil, err
	}

	monCtx := o.mon.Create(t.ID)
	defer o.mon.Delete(t.ID)

	t.SetStatus(task.StateSubmitted, &msg, nil)
	monCtx.Publish(t.GetStatus(), nil)

	t.SetStatus(task.StateWorking, nil, nil)
	monCtx.Publish(t.GetStatus(), nil)

	history := task.History(ctx, o.taskSvc, t)
	session := make(router.Session, 0, len(history)+1)
	session = append(session, history...)
	session = append(session, msg)

	resp, err := o.roundTrip(ctx, t.ID, session, monCtx)
	if err != nil {
		t.SetStatus(task.StateFailed, nil, err)
		monCtx.PublishError(err, t.GetStatus())
		_ = o.taskSvc.Update(ctx, t)
		return t, err
	}

	t.AppendHistory(msg)
	t.AppendHistory(resp.Message)
	final := resp.Message
	t.SetStatus(task.StateCompleted, &final, nil)
	monCtx.Publish(t.GetStatus(), nil)
	_ = o.taskSvc.Update(ctx, t)
	return t, nil
}

// Tasks exposes the task store so a2aserver can serve tasks/get.
func (o *Orchestrator) Tasks() task.Service { return o.taskSvc }

// roundTrip builds a ConnectRequest from session and this orchestrator's
// currently-registered services, then drives the reactive loop once.
func (o *Orchestrator) roundTrip(ctx context.Context, parentTaskID string, session router.Session, monCtx *monitor.Context) (router.ConnectResponse, error) {
	req := router.ConnectRequest{
		Model:    o.modelID,
		Messages: session,
		Options: router.RequestOptions{
			Tools:  router.ToolRequestOptions{Services: o.toolServices(ctx)},
			Agents: router.AgentRequestOptions{Services: o.agentServices(ctx)},
		},
	}

	opts := &router.Options{
		ParentTaskID: parentTaskID,
		Tasks:        o.tasks,
		Iterations:   o.iterations,
		Callback:     func(r router.Response) { monCtx.Publish(r, nil) },
	}

	return reactiveloop.Run(ctx, o.provider, o.mgr, req, opts)
}

func (o *Orchestrator) toolServices(ctx context.Context) []router.ToolService {
	var out []router.ToolService
	for _, c := range o.mgr.List() {
		if c.Kind() != router.KindTool {
			continue
		}
		info, err := c.GetInfo(ctx)
		if err != nil {
			slog.Warn("orchestrator: tool discovery failed", "uri", c.URI(), "error", err)
			continue
		}
		ti, ok := info.(router.ToolInfo)
		if !ok {
			continue
		}
		out = append(out, router.ToolService{Kind: router.KindTool, URI: c.URI(), ID: c.URI(), Info: ti})
	}
	return out
}

func (o *Orchestrator) agentServices(ctx context.Context) []router.AgentService {
	var out []router.AgentService
	for _, c := range o.mgr.List() {
		if c.Kind() != router.KindAgent {
			continue
		}
		info, err := c.GetInfo(ctx)
		if err != nil {
			slog.Warn("orchestrator: agent discovery failed", "uri", c.URI(), "error", err)
			continue
		}
		ai, ok := info.(router.AgentInfo)
		if !ok {
			continue
		}
		out = append(out, router.AgentService{Kind: router.KindAgent, URI: c.URI(), ID: c.URI(), Info: ai})
	}
	return out
}

// AgentCard derives this orchestrator's A2A agent card (§4.8 "Agent-card
// derivation"): name = "{modelId}-agent", one skill per registered service.
func (o *Orchestrator) AgentCard(ctx context.Context) router.AgentInfo {
	card := router.AgentInfo{
		Name:        o.modelID + "-agent",
		Description: fmt.Sprintf("LLM-backed agent using model %q", o.modelID),
	}
	for _, c := range o.mgr.List() {
		info, err := c.GetInfo(ctx)
		if err != nil {
			continue
		}
		card.Skills = append(card.Skills, skillFor(c, info))
	}
	return card
}

func skillFor(c router.Callable, info any) router.Skill {
	switch v := info.(type) {
	case router.ToolInfo:
		name, desc := v.Name, v.Instructions
		if name == "" {
			name = c.URI()
		}
		if desc == "" {
			desc = "tool service"
		}
		return router.Skill{ID: c.URI(), Name: name, Description: desc, Tags: []string{string(router.KindTool)}}
	case router.AgentInfo:
		name, desc := v.Name, v.Description
		if name == "" {
			name = c.URI()
		}
		if desc == "" {
			desc = "agent service"
		}
		return router.Skill{ID: c.URI(), Name: name, Description: desc, Tags: []string{string(router.KindAgent)}}
	default:
		return router.Skill{ID: c.URI(), Name: c.URI()}
	}
}
