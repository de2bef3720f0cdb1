// Package common provides the data structures shared by the RPC client, server
// and transports of dbKV.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One struct is used
//     for requests and responses, the used fields depend on the MessageType.
//     Errors travel as message text plus store.RetCode so the client can rebuild
//     a *store.Error of the same kind.
//
//   - ServerConfig: Transport, serializer, logging and database settings of a
//     server. ClientConfig: endpoints, timeouts and retry behaviour of a client.
package common
