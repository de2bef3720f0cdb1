// Package transport defines the interfaces for RPC communication between a
// dbKV client and server. A transport only moves opaque byte slices, encoding
// is left to the serializer package.
//
// Key Components:
//
//   - IRPCClientTransport: client side, handles connection management and
//     request sending.
//
//   - IRPCServerTransport: server side, receives requests and passes them to
//     the registered ServerHandleFunc.
//
// Implementations: http (one POST per request), tcp and unix (framed
// requests multiplexed over long lived connections, see package base).
package transport
