// Package manager implements §4.4: the uri -> Callable registry and the
// bounded-concurrency fan-out dispatcher ("Manager.call").
package manager

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/pkg/config"
	"github.com/the-artinet-project/router/pkg/registry"
)

// Manager is the registry of callables keyed by uri, plus the dispatch
// fan-out. It exclusively owns the map of callables (§3 Ownership);
// add/remove are externally serialised by the orchestrator facade's add
// queue, so the registry's own reads and writes only need to be
// independently thread-safe, which BaseRegistry already is.
type Manager struct {
	registry    *registry.BaseRegistry[router.Callable]
	concurrency int
}

// New creates a Manager with the given dispatch-call concurrency bound. A
// value <= 0 falls back to config.ConcurrencyFromEnv()'s DEFAULT_CONCURRENCY
// default/override (§6).
func New(concurrency int) *Manager {
	if concurrency <= 0 {
		concurrency = config.ConcurrencyFromEnv()
	}
	return &Manager{
		registry:    registry.NewBaseRegistry[router.Callable](),
		concurrency: concurrency,
	}
}

// Set adds or replaces the callable registered under uri.
func (m *Manager) Set(uri string, callable router.Callable) {
	_ = m.registry.Remove(uri) // Register errors on a pre-existing name; replace is idempotent.
	if err := m.registry.Register(uri, callable); err != nil {
		slog.Error("manager: register callable", "uri", uri, "error", err)
	}
}

// Get looks up the callable registered under uri.
func (m *Manager) Get(uri string) (router.Callable, bool) {
	return m.registry.Get(uri)
}

// Delete removes the callable registered under uri, if any.
func (m *Manager) Delete(uri string) {
	_ = m.registry.Remove(uri)
}

// List returns every registered callable. Order is unspecified.
func (m *Manager) List() []router.Callable {
	return m.registry.List()
}

// Count returns the number of registered callables.
func (m *Manager) Count() int {
	return m.registry.Count()
}

// URIs returns the uris of every registered callable. Order is unspecified.
func (m *Manager) URIs() []string {
	items := m.registry.List()
	// BaseRegistry doesn't expose keys directly; URIs are also carried on
	// each Callable, so derive them from the values instead of threading a
	// second accessor through the generic registry.
	uris := make([]string, 0, len(items))
	for _, c := range items {
		uris = append(uris, c.URI())
	}
	return uris
}

// Stop calls Stop on every registered callable in parallel and returns the
// first error encountered, if any (§4.4 "stop()").
func (m *Manager) Stop(ctx context.Context) error {
	items := m.registry.List()
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		firstErr error
	)
	for _, c := range items {
		wg.Add(1)
		go func(c router.Callable) {
			defer wg.Done()
			if err := c.Stop(ctx); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(c)
	}
	wg.Wait()
	return firstErr
}

// Call is the fan-out dispatcher of §4.4: for each request it resolves a
// callable by uri, type-checks it against the request's kind, and invokes
// Execute under a semaphore bounding in-flight concurrency to
// min(m.concurrency, len(requests)). It is settle-style: one callable's
// failure never cancels its peers, and an unresolved/mismatched request is
// logged and simply produces no response (§7 CallableNotFound /
// RequestTypeMismatch) rather than failing the whole dispatch.
//
// Response order is not guaranteed to match request order (§8's adopted
// set semantics) — callers must key on Response.ID.
func (m *Manager) Call(ctx context.Context, requests []router.Request, opts *router.Options) []router.Response {
	if len(requests) == 0 {
		return nil
	}

	weight := m.concurrency
	if weight <= 0 || weight > len(requests) {
		weight = len(requests)
	}
	sem := semaphore.NewWeighted(int64(weight))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]router.Response, 0, len(requests))
	)

	for _, req := range requests {
		req := req
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context already cancelled: stop scheduling further work but
			// let already-acquired tasks settle (§5 settle-style fan-out).
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			resp, ok := m.dispatchOne(ctx, req, opts)
			if !ok {
				return
			}
			if opts != nil && opts.Callback != nil {
				opts.Callback(resp)
			}
			mu.Lock()
			results = append(results, resp)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// dispatchOne resolves and invokes a single request, implementing steps
// 3a-3c of §4.4's Call algorithm. The bool return reports whether a
// response was produced at all (false for CallableNotFound,
// RequestTypeMismatch, or a thrown adapter error).
func (m *Manager) dispatchOne(ctx context.Context, req router.Request, opts *router.Options) (router.Response, bool) {
	callable, ok := m.registry.Get(req.URI)
	if !ok {
		slog.Warn("manager: no callable registered for uri", "uri", req.URI, "requestId", req.ID)
		return router.Response{}, false
	}

	if (callable.Kind() == router.KindAgent) != req.IsAgent() {
		slog.Warn("manager: callable kind does not match request kind",
			"uri", req.URI, "callableKind", callable.Kind(), "requestKind", req.Kind)
		return router.Response{}, false
	}

	resp, err := callable.Execute(ctx, req, opts)
	if err != nil {
		slog.Error("manager: execute failed", "uri", req.URI, "requestId", req.ID, "error", err)
		return router.Response{}, false
	}
	return resp, true
}
