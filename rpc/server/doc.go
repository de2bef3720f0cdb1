// Package server implements the RPC server of dbKV. It decodes requests
// received by a transport, dispatches them to a store.IStore and encodes the
// answers.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Adapter for the key-value operations. Table names
//     are resolved with db.ParseTable, unknown names are answered with
//     RetCInvalidArgument. Keys requests drain the store iterator into one
//     response.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport, serializer and store.
//
// Usage Example:
//
//	conf := common.ServerConfig{
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  TimeoutSecond: 5,
//	  DB: db.Config{Enabled: true, Driver: "sqlite", ConnectionString: "kv.db"},
//	}
//
//	s := server.NewRPCServer(
//	  conf,
//	  http.NewHttpServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  sqlstore.NewSQLStore(conf.DB, nil),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	HandleRequest is safe for concurrent use, the hosted store serializes
//	access to its connection. Serve should be called only once.
package server
