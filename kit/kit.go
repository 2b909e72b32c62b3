// Package kit holds the transport-agnostic service plumbing shared by the
// mugenblock service surfaces: a typed Endpoint signature, middleware
// chaining, and MCP tool registration.
package kit

import "context"

// Endpoint is a transport-agnostic service function. Connectivity handlers,
// HTTP handlers and MCP tools all decode into an Endpoint call.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares so the first listed runs outermost.
func Chain(e Endpoint, mws ...Middleware) Endpoint {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}
