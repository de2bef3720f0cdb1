// Package http implements an HTTP-based transport layer for dbKV's RPC system.
//
// Every request is one POST to /store carrying a serialized message, the
// response body is the serialized answer. When created with WithMetrics, the
// server also answers GET /metrics with the telemetry in Prometheus text
// format.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. It selects endpoints
//     round-robin and retries failed requests.
//
//   - httpServerTransport: Implements IRPCServerTransport. Handler exposes the
//     routes so they can be served by an httptest.Server.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
