// Package client implements the RPC client of dbKV. NewRPCStore returns a
// store.IStore that forwards every operation to a remote dbKV server through
// the configured transport and serializer.
//
// The package focuses on:
//   - Transparent RPC access to a remote store
//   - Integration with the transport and serialization layers
//   - Keeping the error kind of remote failures (errors.Is works against the store sentinels)
//
// Usage Example:
//
//	conf := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, err := client.NewRPCStore(conf, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.Put(db.TablePwmOTP, "mykey", "myvalue")
//	value, ok, _ := s.Get(db.TablePwmOTP, "mykey")
//
// Iterators returned by the client are snapshots: the server drains its
// cursor into one response and the client walks the received keys.
//
// Thread Safety:
//
//	The client is safe for concurrent use from multiple goroutines.
package client
