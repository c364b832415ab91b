package router

import "context"

// Callable is the uniform target of Manager.Call: either an Agent adapter
// or a Tool adapter (the Glossary's "Callable"). The Manager's dispatch
// table is uri -> Callable, with Kind as the cheap discriminator used by
// the type-check step of §4.4.
type Callable interface {
	// Kind reports whether this is an agent or a tool callable.
	Kind() Kind

	// URI is the uri this callable is registered under.
	URI() string

	// GetInfo returns this callable's capability snapshot, loading it
	// lazily (and single-flight) on first call.
	GetInfo(ctx context.Context) (any, error)

	// Execute runs one request against this callable. It returns a Go
	// error only for conditions the Manager must log-and-skip (uri
	// mismatch); adapter-level failures are embedded in the returned
	// Response per §4.2 step 6 / §4.3 step 5, never returned as error.
	Execute(ctx context.Context, req Request, opts *Options) (Response, error)

	// Stop releases resources this callable owns. Wrapped remote
	// handles a caller still owns are left untouched by their adapter's
	// Stop (§3 Ownership).
	Stop(ctx context.Context) error
}

// Provider turns a normalized ConnectRequest into a ConnectResponse that
// may carry further service calls. It MUST honour ctx cancellation and MUST
// return a well-formed ConnectResponse even on LLM refusal/empty content
// (§4.1).
type Provider func(ctx context.Context, req ConnectRequest) (ConnectResponse, error)
