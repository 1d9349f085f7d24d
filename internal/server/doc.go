// Package server hosts the Fiber HTTP service that exposes the release feed.
// It wires the request-id and CORS middleware chain, the feed handler that
// turns a resolver result into the public JSON response, and the `/-/`
// diagnostics prefix that sibling packages (server/routes) register on.
// Dependencies are passed in explicitly through AppOptions so tests can
// swap the resolver for a stub.
package server
