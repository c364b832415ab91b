// Package tooladapter implements §4.3: one MCP stdio subprocess, its
// capability discovery, invocation, and safe shutdown.
package tooladapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/pkg/config"
)

const protocolVersion = "2024-11-05"

// clientInfo identifies this process to every MCP server it spawns.
var clientInfo = mcp.Implementation{Name: "artinet-router", Version: router.Version}

// Config is a stdio subprocess definition (§4.8 add()'s "has a command
// field" case).
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
}

// expand applies §4.3 step 1's shell-style variable expansion to Command,
// Args and Env values using pkg/config's expandEnvVars regex family rather
// than shelling out: it interpolates $VAR / ${VAR} / ${VAR:-default}
// references directly, without spawning an actual host shell.
func (c Config) expand() Config {
	out := Config{Command: config.ExpandString(c.Command)}
	if len(c.Args) > 0 {
		out.Args = make([]string, len(c.Args))
		for i, a := range c.Args {
			out.Args[i] = config.ExpandString(a)
		}
	}
	if len(c.Env) > 0 {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = config.ExpandString(v)
		}
	}
	return out
}

func (c Config) envSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// pidHolder is implemented by stdio transports that expose the spawned
// subprocess's pid. Not guaranteed by every transport, so the safe-close
// sequence's SIGKILL step (§4.3 step 6) is best-effort.
type pidHolder interface {
	Pid() int
}

// Adapter owns one MCP stdio subprocess end to end: spawn, handshake,
// capability discovery, invocation, and safe-close (§4.3). It exclusively
// owns its subprocess and transport (§3 Ownership).
type Adapter struct {
	uri string
	cfg Config

	connectOnce sync.Once
	connectErr  error
	stdio       *transport.Stdio
	client      *client.Client
	initResult  *mcp.InitializeResult

	group  singleflight.Group
	mu     sync.RWMutex
	info   router.ToolInfo
	loaded bool
}

// New returns an Adapter for uri that will lazily spawn cfg's subprocess on
// first use.
func New(uri string, cfg Config) *Adapter {
	return &Adapter{uri: uri, cfg: cfg.expand()}
}

// Kind reports this is a tool callable.
func (a *Adapter) Kind() router.Kind { return router.KindTool }

// URI returns the uri this adapter answers to.
func (a *Adapter) URI() string { return a.uri }

// connect spawns the subprocess and performs the MCP handshake exactly
// once, per §4.3 Creation steps 1-5. A transient stderr listener logs
// anything the server writes during the initialization window; it is
// detached once the adapter is ready.
func (a *Adapter) connect(ctx context.Context) error {
	a.connectOnce.Do(func() {
		stdio := transport.NewStdio(a.cfg.Command, a.cfg.envSlice(), a.cfg.Args...)
		if err := stdio.Start(ctx); err != nil {
			a.connectErr = fmt.Errorf("tooladapter: spawn %s: %w", a.uri, err)
			return
		}

		stop := a.watchStderr(stdio, func(line string) {
			slog.Warn("tooladapter: stderr during init", "uri", a.uri, "line", line)
		})

		c := client.NewClient(stdio)
		initReq := mcp.InitializeRequest{}
		initReq.Params.ClientInfo = clientInfo
		initReq.Params.ProtocolVersion = protocolVersion

		initResult, err := c.Initialize(ctx, initReq)
		stop()
		if err != nil {
			safeCall(stdio.Close)
			a.connectErr = fmt.Errorf("tooladapter: initialize %s: %w", a.uri, err)
			return
		}

		a.stdio = stdio
		a.client = c
		a.initResult = initResult
	})
	return a.connectErr
}

// watchStderr streams lines from the subprocess's piped stderr to onLine
// until the returned stop func is called or the pipe closes. The stdio
// transport pipes stderr explicitly (never inherits the parent's) so it is
// always observable this way (§4.3 Creation step 2).
func (a *Adapter) watchStderr(stdio *transport.Stdio, onLine func(string)) (stop func()) {
	reader := stdio.Stderr()
	if reader == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			select {
			case <-done:
				return
			default:
				onLine(scanner.Text())
			}
		}
	}()
	return func() { close(done) }
}

// GetInfo satisfies router.Callable: it loads and returns this adapter's
// ToolInfo boxed as any. Callers inside this package that want the
// concrete type should call ToolInfo instead.
func (a *Adapter) GetInfo(ctx context.Context) (any, error) {
	return a.ToolInfo(ctx)
}

// ToolInfo returns the adapter's ToolInfo, running capability discovery
// lazily and single-flight on first call (§4.3 "Capability discovery
// (one-shot, invoked lazily on first getInfo())"; §8 idempotence).
func (a *Adapter) ToolInfo(ctx context.Context) (router.ToolInfo, error) {
	a.mu.RLock()
	if a.loaded {
		info := a.info
		a.mu.RUnlock()
		return info, nil
	}
	a.mu.RUnlock()

	v, err, _ := a.group.Do("info", func() (any, error) {
		if err := a.connect(ctx); err != nil {
			return router.ToolInfo{}, err
		}
		info, err := a.discover(ctx)
		if err != nil {
			return router.ToolInfo{}, err
		}
		a.mu.Lock()
		a.info = info
		a.loaded = true
		a.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return router.ToolInfo{}, err
	}
	return v.(router.ToolInfo), nil
}

// discover runs the MCP capability/tool/resource/prompt listing of §4.3's
// "Capability discovery" paragraph.
func (a *Adapter) discover(ctx context.Context) (router.ToolInfo, error) {
	if a.initResult.Capabilities.Tools == nil {
		return router.ToolInfo{}, fmt.Errorf("tooladapter: %s: server does not declare tools capability", a.uri)
	}

	info := router.ToolInfo{
		Name:    a.initResult.ServerInfo.Name,
		Version: a.initResult.ServerInfo.Version,
		Capabilities: router.ToolCapabilities{
			Tools:     a.initResult.Capabilities.Tools != nil,
			Resources: a.initResult.Capabilities.Resources != nil,
			Prompts:   a.initResult.Capabilities.Prompts != nil,
		},
		Instructions: a.initResult.Instructions,
	}

	tools, err := a.listTools(ctx)
	if err != nil {
		return router.ToolInfo{}, err
	}
	if len(tools) == 0 {
		// A server that declares the tools capability but returns an empty
		// list fails discovery rather than silently producing an
		// instructionless, toolless service.
		return router.ToolInfo{}, fmt.Errorf("tooladapter: %s: server declares tools capability but lists none", a.uri)
	}
	info.Tools = tools

	if info.Capabilities.Resources {
		resources, err := a.listResources(ctx)
		if err != nil {
			return router.ToolInfo{}, err
		}
		info.Resources = resources
	}
	if info.Capabilities.Prompts {
		prompts, err := a.listPrompts(ctx)
		if err != nil {
			return router.ToolInfo{}, err
		}
		info.Prompts = prompts
	}

	return info, nil
}

func (a *Adapter) listTools(ctx context.Context) ([]router.ToolDescriptor, error) {
	var out []router.ToolDescriptor
	var cursor mcp.Cursor
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor
		resp, err := a.client.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tooladapter: %s: list tools: %w", a.uri, err)
		}
		for _, t := range resp.Tools {
			out = append(out, router.ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: convertSchema(t.InputSchema)})
		}
		if resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

func (a *Adapter) listResources(ctx context.Context) ([]router.ResourceDescriptor, error) {
	var out []router.ResourceDescriptor
	var cursor mcp.Cursor
	for {
		req := mcp.ListResourcesRequest{}
		req.Params.Cursor = cursor
		resp, err := a.client.ListResources(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tooladapter: %s: list resources: %w", a.uri, err)
		}
		for _, r := range resp.Resources {
			out = append(out, router.ResourceDescriptor{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MIMEType})
		}
		if resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

func (a *Adapter) listPrompts(ctx context.Context) ([]router.PromptDescriptor, error) {
	var out []router.PromptDescriptor
	var cursor mcp.Cursor
	for {
		req := mcp.ListPromptsRequest{}
		req.Params.Cursor = cursor
		resp, err := a.client.ListPrompts(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tooladapter: %s: list prompts: %w", a.uri, err)
		}
		for _, p := range resp.Prompts {
			out = append(out, router.PromptDescriptor{Name: p.Name, Description: p.Description})
		}
		if resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

// convertSchema round-trips an mcp.ToolInputSchema through JSON to a plain
// map rather than hand-mirroring the schema's field set.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// Execute runs the Invocation algorithm of §4.3.
func (a *Adapter) Execute(ctx context.Context, req router.Request, opts *router.Options) (router.Response, error) {
	if req.URI != a.uri {
		return router.Response{}, router.NewURIMismatchError(a.uri, req.URI)
	}
	if err := a.connect(ctx); err != nil {
		return a.errorResponse(req, err), nil
	}
	if req.Tool == nil {
		return a.errorResponse(req, fmt.Errorf("tooladapter: %s: request missing tool call", a.uri)), nil
	}

	stop := a.watchStderr(a.stdio, func(line string) {
		if opts == nil || opts.Callback == nil {
			return
		}
		opts.Callback(router.Response{
			Kind: router.KindTool,
			ID:   req.ID,
			URI:  a.uri,
			ToolResult: &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: line}},
			},
		})
	})
	defer stop()

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = req.Tool.Name
	callReq.Params.Arguments = req.Tool.Arguments

	result, err := a.client.CallTool(ctx, callReq)
	if err != nil {
		return a.errorResponse(req, err), nil
	}

	return router.Response{Kind: router.KindTool, ID: req.ID, URI: a.uri, ToolResult: result}, nil
}

// errorResponse synthesizes the single-text-part "error" CallToolResult of
// §4.3 step 5, carrying the captured error alongside it (§7 AdapterFailure)
// rather than returning it to the caller.
func (a *Adapter) errorResponse(req router.Request, err error) router.Response {
	name := ""
	if req.Tool != nil {
		name = req.Tool.Name
	}
	return router.Response{
		Kind: router.KindTool,
		ID:   req.ID,
		URI:  a.uri,
		ToolResult: &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{
				Type: "text",
				Text: fmt.Sprintf("call to %q failed: %v", name, err),
			}},
		},
		Error: err,
	}
}

// Stop runs the safe-close sequence of §4.3. Every step is isolated so a
// failure in one does not skip the rest.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.stdio == nil {
		return nil
	}
	safeCall(a.stdio.Close)
	if a.client != nil {
		safeCall(a.client.Close)
	}
	if holder, ok := any(a.stdio).(pidHolder); ok {
		if pid := holder.Pid(); pid > 0 {
			killProcess(pid)
		}
	}
	return nil
}

func safeCall(fn func() error) {
	defer func() { _ = recover() }()
	_ = fn()
}

var _ router.Callable = (*Adapter)(nil)
