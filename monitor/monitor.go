// Package monitor implements §4.5: the event bus that aggregates per-context
// update/error emissions onto one subscriber surface.
//
// The TypeScript source this spec distills occasionally binds listener
// methods fresh at attach time, which makes a later detach a no-op (a
// different closure is removed than the one that was added) — see §9's
// explicit callout. Context here stores its own stable bound handlers so
// Monitor.Delete/Set can unwire exactly what Create/Set wired.
package monitor

import "sync"

// Update is the generic progress envelope emitted by a Context: an A2A
// task snapshot, a normalized tool/agent Response, or a plain status
// string, paired with the underlying domain update it wraps (nil if none).
type Update struct {
	State  any
	Update any
}

// ErrorEvent pairs an error with the state that was current when it fired.
type ErrorEvent struct {
	Err   error
	State any
}

// Context is the minimal publisher shape a Monitor can wire up: it fans
// Update and ErrorEvent values out to the subscriber funcs wired to it.
// Code making progress on a call reports it through Publish/PublishError.
type Context struct {
	mu          sync.Mutex
	updateSubs  []func(Update)
	errorSubs   []func(ErrorEvent)
}

// NewContext returns an empty Context ready to be registered with a Monitor.
func NewContext() *Context {
	return &Context{}
}

// Publish fans an update out to every subscriber wired to this context
// (normally exactly one: the owning Monitor). Subscriber panics/blocking
// are the subscriber's problem, not this context's — emit is synchronous
// best-effort and failures of one subscriber must not affect peers, so
// each subscriber call is isolated.
func (c *Context) Publish(state, update any) {
	c.mu.Lock()
	subs := append([]func(Update){}, c.updateSubs...)
	c.mu.Unlock()
	for _, sub := range subs {
		func() {
			defer func() { _ = recover() }()
			sub(Update{State: state, Update: update})
		}()
	}
}

// PublishError fans an error out to every subscriber of this context.
func (c *Context) PublishError(err error, state any) {
	c.mu.Lock()
	subs := append([]func(ErrorEvent){}, c.errorSubs...)
	c.mu.Unlock()
	for _, sub := range subs {
		func() {
			defer func() { _ = recover() }()
			sub(ErrorEvent{Err: err, State: state})
		}()
	}
}

func (c *Context) onUpdate(fn func(Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateSubs = append(c.updateSubs, fn)
}

func (c *Context) onError(fn func(ErrorEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorSubs = append(c.errorSubs, fn)
}

// unwireAll removes every subscriber previously wired by Monitor for
// this context. A Monitor only ever wires one handler pair per context, so
// clearing both slices is equivalent to removing exactly that pair and
// leaves the Context reusable if re-wired to a new Monitor.
func (c *Context) unwireAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateSubs = nil
	c.errorSubs = nil
}

// Monitor aggregates the update/error emissions of every registered Context
// onto its own subscriber list (on/off/emit), the "single subscriber
// surface" of §4.5.
type Monitor struct {
	mu       sync.RWMutex
	contexts map[string]*Context

	subMu        sync.RWMutex
	updateListeners []func(state, update any)
	errorListeners  []func(err error, state any)
}

// New returns an empty Monitor.
func New() *Monitor {
	return &Monitor{contexts: make(map[string]*Context)}
}

// Create constructs a new Context for id, wires its update/error emissions
// to this Monitor's own emit methods via a stable bound handler, registers
// it, and returns it.
func (m *Monitor) Create(id string) *Context {
	ctx := NewContext()
	m.wire(ctx)

	m.mu.Lock()
	m.contexts[id] = ctx
	m.mu.Unlock()
	return ctx
}

// Set registers an already-constructed context under id. If id was already
// present, its prior context's listeners are unwired first (§4.5 "On
// set(id, context)").
func (m *Monitor) Set(id string, ctx *Context) {
	m.mu.Lock()
	prev, had := m.contexts[id]
	m.contexts[id] = ctx
	m.mu.Unlock()

	if had {
		prev.unwireAll()
	}
	m.wire(ctx)
}

// Delete unwires and removes the context registered under id, if any
// (§4.5 "On delete(id): listeners are unwired before removal").
func (m *Monitor) Delete(id string) {
	m.mu.Lock()
	ctx, ok := m.contexts[id]
	delete(m.contexts, id)
	m.mu.Unlock()

	if ok {
		ctx.unwireAll()
	}
}

// Get returns the context registered under id, if any.
func (m *Monitor) Get(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[id]
	return ctx, ok
}

func (m *Monitor) wire(ctx *Context) {
	ctx.onUpdate(m.emitUpdate)
	ctx.onError(m.emitError)
}

func (m *Monitor) emitUpdate(u Update) {
	m.subMu.RLock()
	listeners := append([]func(state, update any){}, m.updateListeners...)
	m.subMu.RUnlock()
	for _, l := range listeners {
		if l != nil {
			l(u.State, u.Update)
		}
	}
}

func (m *Monitor) emitError(e ErrorEvent) {
	m.subMu.RLock()
	listeners := append([]func(err error, state any){}, m.errorListeners...)
	m.subMu.RUnlock()
	for _, l := range listeners {
		if l != nil {
			l(e.Err, e.State)
		}
	}
}

// OnUpdate subscribes fn to every update emitted by every registered
// context. It returns an unsubscribe func (the Go idiom for the source's
// on/off pair on one call).
func (m *Monitor) OnUpdate(fn func(state, update any)) (unsubscribe func()) {
	m.subMu.Lock()
	m.updateListeners = append(m.updateListeners, fn)
	idx := len(m.updateListeners) - 1
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if idx < len(m.updateListeners) {
			m.updateListeners[idx] = nil
		}
	}
}

// OnError subscribes fn to every error emitted by every registered context.
func (m *Monitor) OnError(fn func(err error, state any)) (unsubscribe func()) {
	m.subMu.Lock()
	m.errorListeners = append(m.errorListeners, fn)
	idx := len(m.errorListeners) - 1
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if idx < len(m.errorListeners) {
			m.errorListeners[idx] = nil
		}
	}
}

// ListenerCount reports how many live (non-unsubscribed) update and error
// listeners are currently registered.
func (m *Monitor) ListenerCount() (updates, errors int) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, l := range m.updateListeners {
		if l != nil {
			updates++
		}
	}
	for _, l := range m.errorListeners {
		if l != nil {
			errors++
		}
	}
	return updates, errors
}
