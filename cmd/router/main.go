// Command router is the CLI for the router library.
//
// Usage:
//
//	router run --config services.yaml "summarize this ticket"
//	router serve-agent --config services.yaml --addr :8080
//	router version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/a2aserver"
	"github.com/the-artinet-project/router/logging"
	"github.com/the-artinet-project/router/orchestrator"
	"github.com/the-artinet-project/router/pkg/config"
	"github.com/the-artinet-project/router/provider/httpprovider"
)

// CLI defines the command-line interface.
type CLI struct {
	Run        RunCmd        `cmd:"" help:"Connect once against a config and print the final text."`
	ServeAgent ServeAgentCmd `cmd:"" name:"serve-agent" help:"Expose an orchestrator as a remote A2A agent."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(router.GetVersion().String())
	return nil
}

// RunCmd builds an orchestrator from a config file, connects once, and
// prints the final text to stdout.
type RunCmd struct {
	Config string   `short:"c" required:"" help:"Path to a YAML service config." type:"path"`
	Model  string   `help:"Model identifier passed to the provider."`
	Prompt []string `arg:"" help:"The prompt to send."`
}

func (c *RunCmd) Run() error {
	orc, err := buildOrchestrator(c.Config, c.Model)
	if err != nil {
		return err
	}
	defer orc.Close(context.Background())

	text, err := orc.Connect(context.Background(), strings.Join(c.Prompt, " "))
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

// ServeAgentCmd exposes an orchestrator's agent-as-a-service engine over
// the A2A HTTP+JSON transport.
type ServeAgentCmd struct {
	Config  string `short:"c" required:"" help:"Path to a YAML service config." type:"path"`
	Model   string `help:"Model identifier passed to the provider."`
	Addr    string `default:":8080" help:"Address to listen on."`
	AgentID string `name:"agent-id" default:"agent" help:"Route segment this agent is served under."`
	BaseURL string `name:"base-url" help:"Public base URL stamped onto the agent card (defaults to http://localhost{Addr})."`
}

func (c *ServeAgentCmd) Run() error {
	orc, err := buildOrchestrator(c.Config, c.Model)
	if err != nil {
		return err
	}
	defer orc.Close(context.Background())

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost" + c.Addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	srv := a2aserver.New(orc, c.AgentID, baseURL)
	fmt.Printf("router serve-agent listening on %s (agent %q)\n", c.Addr, c.AgentID)
	return srv.Start(ctx, c.Addr)
}

func buildOrchestrator(configPath, model string) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = cfg.Model
	}

	orc := orchestrator.New(orchestrator.Config{
		ModelID:     model,
		Provider:    httpprovider.New(httpprovider.Config{}),
		Concurrency: cfg.Concurrency,
		Iterations:  cfg.Iterations,
	})

	for _, t := range cfg.Tools {
		if err := orc.Add(orchestrator.ToolSpec{URI: t.URI, Command: t.Command, Args: t.Args, Env: t.Env}); err != nil {
			return nil, fmt.Errorf("router: add tool %q: %w", t.URI, err)
		}
	}
	for _, a := range cfg.Agents {
		if err := orc.Add(orchestrator.AgentHandle{URI: a.URI, AgentURL: a.AgentURL}); err != nil {
			return nil, fmt.Errorf("router: add agent %q: %w", a.URI, err)
		}
	}
	return orc, nil
}

func main() {
	_ = config.LoadEnvFiles()

	cleanup := logging.Init()
	defer cleanup()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("router"),
		kong.Description("router - orchestrates LLM/tool/agent turns over A2A and MCP"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
