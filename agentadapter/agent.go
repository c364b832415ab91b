// Package agentadapter implements the Agent adapter of §4.2: one A2A
// endpoint, wrapped or instantiated, with lazy single-flight capability
// discovery and per-parent sticky task correlation.
package agentadapter

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/a2a"

	"context"
)

// LocalEngine is the minimal shape a create-agent definition (§4.8 add's
// "has an engine field" case) must implement to be instantiated in-process
// rather than reached over HTTP.
type LocalEngine interface {
	AgentCard() a2a.AgentCard
	Execute(ctx context.Context, message a2a.Message, history []a2a.Message) (string, error)
}

// Adapter is one A2A endpoint, either wrapping a caller-owned remote handle
// or owning a locally instantiated LocalEngine.
type Adapter struct {
	uri      string
	agentURL string
	client   *a2a.Client
	engine   LocalEngine
	owned    bool

	group singleflight.Group

	mu     sync.RWMutex
	info   router.AgentInfo
	loaded bool

	history   []a2a.Message
	historyMu sync.Mutex
}

// Wrap adapts an existing, caller-owned A2A HTTP endpoint. Stop is a no-op
// for a wrapped adapter — the caller retains ownership of the remote handle
// (§3 Ownership). Wrap is idempotent in the sense required by §8's
// double-wrap law: Wrap(uri, Wrap(uri, url, c).Unwrap()) exposes the same
// uri/info as the original, since Unwrap returns exactly (agentURL, client).
func Wrap(uri, agentURL string, client *a2a.Client) *Adapter {
	return &Adapter{uri: uri, agentURL: agentURL, client: client, owned: false}
}

// Unwrap returns the underlying agent URL and client, for double-wrap
// idempotence checks.
func (a *Adapter) Unwrap() (string, *a2a.Client) {
	return a.agentURL, a.client
}

// NewLocal instantiates a LocalEngine and wraps it; the adapter exclusively
// owns it (§3 Ownership) and releases it on Stop.
func NewLocal(uri string, engine LocalEngine) *Adapter {
	return &Adapter{uri: uri, engine: engine, owned: true}
}

// Kind reports this is an agent callable.
func (a *Adapter) Kind() router.Kind { return router.KindAgent }

// URI returns the uri this adapter answers to.
func (a *Adapter) URI() string { return a.uri }

// GetInfo satisfies router.Callable: it loads and returns this adapter's
// AgentInfo boxed as any. Callers inside this package that want the
// concrete type should call AgentInfo instead.
func (a *Adapter) GetInfo(ctx context.Context) (any, error) {
	return a.AgentInfo(ctx)
}

// AgentInfo returns the AgentInfo, loading it lazily and single-flight on
// first call: a concurrent second caller during loading observes the same
// pending result rather than triggering a second fetch (§4.2, §8
// "Tool discovery is idempotent" — the same guarantee applies to agents).
// A caller that does NOT go through AgentInfo observes no cached value at
// all; there is deliberately no bare unsynchronized accessor.
func (a *Adapter) AgentInfo(ctx context.Context) (router.AgentInfo, error) {
	a.mu.RLock()
	if a.loaded {
		info := a.info
		a.mu.RUnlock()
		return info, nil
	}
	a.mu.RUnlock()

	v, err, _ := a.group.Do("info", func() (any, error) {
		info, err := a.loadInfo(ctx)
		if err != nil {
			return router.AgentInfo{}, err
		}
		a.mu.Lock()
		a.info = info
		a.loaded = true
		a.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return router.AgentInfo{}, err
	}
	return v.(router.AgentInfo), nil
}

func (a *Adapter) loadInfo(ctx context.Context) (router.AgentInfo, error) {
	if a.engine != nil {
		return cardToInfo(a.engine.AgentCard()), nil
	}

	card, err := a.client.DiscoverAgent(ctx, a.agentURL)
	if err != nil {
		return router.AgentInfo{}, fmt.Errorf("agentadapter: discover %s: %w", a.uri, err)
	}
	return cardToInfo(*card), nil
}

func cardToInfo(card a2a.AgentCard) router.AgentInfo {
	skills := make([]router.Skill, 0, len(card.Skills))
	for _, s := range card.Skills {
		skills = append(skills, router.Skill{ID: s.Name, Name: s.Name, Description: s.Description, Tags: s.Tags})
	}
	return router.AgentInfo{Name: card.Name, Description: card.Description, URL: card.URL, Skills: skills}
}

// GetTarget returns the discovered AgentService descriptor, loading info
// first if needed (§4.2 getTarget()).
func (a *Adapter) GetTarget(ctx context.Context) (router.AgentService, error) {
	info, err := a.AgentInfo(ctx)
	if err != nil {
		return router.AgentService{}, err
	}
	return router.AgentService{Kind: router.KindAgent, URI: a.uri, ID: a.uri, Info: info}, nil
}

// Execute runs the Execute algorithm of §4.2.
func (a *Adapter) Execute(ctx context.Context, req router.Request, opts *router.Options) (router.Response, error) {
	if req.URI != a.uri {
		return router.Response{}, router.NewURIMismatchError(a.uri, req.URI)
	}

	msg := a.normalizeCall(req)

	childID := opts.Tasks.ChildTaskID(opts.ParentTaskID, a.uri)
	msg.TaskID = childID
	msg.ReferenceTaskIDs = opts.Tasks.ReferenceIDs(opts.ParentTaskID)

	resp := router.Response{Kind: router.KindAgent, ID: req.ID, URI: a.uri}

	result, err := a.send(ctx, msg)
	if err != nil {
		resp.Error = err
		resp.AgentResult = err.Error()
		return resp, nil
	}

	resp.AgentResult = result
	return resp, nil
}

// normalizeCall implements §4.2 step 2: a string call becomes a single text
// part message; a structured call becomes a single user-role text part
// message carrying its Content (its Role is not carried over). An empty-string call
// must still be sent verbatim if the caller provided it.
func (a *Adapter) normalizeCall(req router.Request) a2a.Message {
	if req.AgentMessage != nil {
		return a2a.Message{Role: a2a.MessageRoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: req.AgentMessage.Content}}}
	}
	return a2a.TextMessage(a2a.MessageRoleUser, req.AgentText)
}

func (a *Adapter) send(ctx context.Context, msg a2a.Message) (string, error) {
	if a.engine != nil {
		a.historyMu.Lock()
		history := append([]a2a.Message(nil), a.history...)
		a.history = append(a.history, msg)
		a.historyMu.Unlock()

		text, err := a.engine.Execute(ctx, msg, history)
		if err != nil {
			return "", err
		}
		return text, nil
	}

	task, err := a.client.SendMessage(ctx, a.agentURL, msg)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", errors.New("agentadapter: remote returned no task")
	}
	return a2a.ExtractText(task), nil
}

// Stop releases resources this adapter exclusively owns. A wrapped remote
// handle is left untouched — the caller still owns its lifetime.
func (a *Adapter) Stop(ctx context.Context) error {
	if !a.owned {
		return nil
	}
	a.historyMu.Lock()
	a.history = nil
	a.historyMu.Unlock()
	return nil
}

var _ router.Callable = (*Adapter)(nil)
