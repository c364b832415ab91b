// Package reactiveloop implements §4.6: the turn-based drive loop between
// a Provider and the Manager's dispatch, with an iteration budget,
// cancellation, and the last-iteration "stop now" hint.
package reactiveloop

import (
	"context"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/manager"
)

// MaxIterationsMessage is the fixed system message injected at the start of
// the final allowed iteration (§4.6 "last-iteration hint"): it instructs
// the assistant to stop attempting further calls, summarise progress, and
// suggest next steps.
const MaxIterationsMessage = "You have reached the maximum number of iterations allowed for this task. " +
	"Do not attempt any further tool or agent calls. Summarize the progress made so far and suggest concrete next steps for the user."

// Run drives the provider <-> Manager dialogue until the provider stops
// requesting calls, the iteration budget is exhausted, or ctx is
// cancelled.
//
// On the final allowed iteration, the provider's response is returned as-is
// without dispatching any calls it still requested — the budget is
// exhausted, so those calls are never executed (§8 scenario 4's "even if it
// still contains tool requests — they are not dispatched").
func Run(ctx context.Context, provider router.Provider, mgr *manager.Manager, req router.ConnectRequest, opts *router.Options) (router.ConnectResponse, error) {
	iterationsLeft := opts.Iterations
	if iterationsLeft <= 0 {
		iterationsLeft = 1
	}

	var (
		response *router.ConnectResponse
		results  []router.Response
	)

	for iterationsLeft > 0 {
		if err := ctx.Err(); err != nil {
			return router.ConnectResponse{}, router.NewCancellationError(err)
		}

		isLast := iterationsLeft == 1
		var extra []router.Message
		if isLast {
			extra = []router.Message{{Role: router.RoleSystem, Content: MaxIterationsMessage}}
		}
		req = merge(req, results, extra)

		resp, err := provider(ctx, req)
		if err != nil {
			return router.ConnectResponse{}, router.NewProviderFailureError(err)
		}
		response = &resp

		if isLast {
			break
		}

		calls := resp.Requests()
		results = mgr.Call(ctx, calls, opts)
		if len(results) == 0 {
			break
		}
		iterationsLeft--
	}

	if response == nil {
		return router.ConnectResponse{}, router.ErrNoResponse
	}
	return *response, nil
}

// merge folds the previous iteration's results and any extra system
// messages into req, per §4.6's merge() contract: append tool/agent
// responses to their respective options lists, append extra to messages.
func merge(req router.ConnectRequest, results []router.Response, extra []router.Message) router.ConnectRequest {
	next := req

	if len(extra) > 0 {
		msgs := make([]router.Message, len(req.Messages), len(req.Messages)+len(extra))
		copy(msgs, req.Messages)
		next.Messages = append(msgs, extra...)
	}

	if len(results) > 0 {
		toolResponses := append([]router.Response{}, req.Options.Tools.Responses...)
		agentResponses := append([]router.Response{}, req.Options.Agents.Responses...)
		for _, r := range results {
			if r.Kind == router.KindTool {
				toolResponses = append(toolResponses, r)
			} else {
				agentResponses = append(agentResponses, r)
			}
		}
		next.Options.Tools.Responses = toolResponses
		next.Options.Agents.Responses = agentResponses
	}

	return next
}
