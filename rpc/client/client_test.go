package client_test

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/driver"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/lib/store/sqlstore"
	storetesting "github.com/ValentinKolb/dbKV/lib/store/testing"
	"github.com/ValentinKolb/dbKV/rpc/client"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/serializer"
	"github.com/ValentinKolb/dbKV/rpc/server"
	httptransport "github.com/ValentinKolb/dbKV/rpc/transport/http"
	"github.com/ValentinKolb/dbKV/rpc/transport/unix"
)

func dbConfig(t *testing.T) db.Config {
	return db.Config{
		Enabled:          true,
		Driver:           driver.DialectSQLite,
		ConnectionString: filepath.Join(t.TempDir(), "kv.db"),
		InstanceID:       "rpc-test",
	}
}

func clientConfig(endpoint string) common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{endpoint},
			RetryCount: 1,
		},
	}
}

// newHTTPStore starts a SQL store behind an httptest server and returns a client for it
func newHTTPStore(t *testing.T, s serializer.IRPCSerializer) store.IStore {
	backend := sqlstore.NewSQLStore(dbConfig(t), nil)
	srv := server.NewRPCServer(common.ServerConfig{}, httptransport.NewHttpServerTransport(), s, backend)

	ts := httptest.NewServer(httptransport.NewHandler(srv.HandleRequest))
	t.Cleanup(func() {
		ts.Close()
		backend.Close()
	})

	rpcStore, err := client.NewRPCStore(clientConfig(ts.URL), httptransport.NewHttpClientTransport(), s)
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	return rpcStore
}

func TestRPCStoreHTTP(t *testing.T) {
	storetesting.RunStoreTests(t, "json", func() store.IStore {
		return newHTTPStore(t, serializer.NewJSONSerializer())
	})
	storetesting.RunStoreTests(t, "binary", func() store.IStore {
		return newHTTPStore(t, serializer.NewBinarySerializer())
	})
}

func TestRPCStoreUnix(t *testing.T) {
	s := serializer.NewGOBSerializer()
	socket := filepath.Join(t.TempDir(), "dbkv.sock")

	backend := sqlstore.NewSQLStore(dbConfig(t), nil)
	conf := common.ServerConfig{
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: socket},
	}
	srv := server.NewRPCServer(conf, unix.NewUnixDefaultServerTransport(), s, backend)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})

	// wait for the listener
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := net.Dial("unix", socket)
		if err == nil {
			_ = c.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rpcStore, err := client.NewRPCStore(clientConfig(socket), unix.NewUnixClientTransport(), s)
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	defer rpcStore.Close()

	if existed, err := rpcStore.Put(db.TablePwmAudit, "event-1", "login"); err != nil || existed {
		t.Fatalf("Put: got (%t, %v), want (false, nil)", existed, err)
	}
	if value, ok, err := rpcStore.Get(db.TablePwmAudit, "event-1"); err != nil || !ok || value != "login" {
		t.Fatalf("Get: got (%q, %t, %v)", value, ok, err)
	}
	if n, err := rpcStore.Size(db.TablePwmAudit); err != nil || n != 1 {
		t.Fatalf("Size: got (%d, %v), want 1", n, err)
	}
	if records := rpcStore.HealthCheck(); health.Worst(records) != health.StatusGood {
		t.Errorf("Expected GOOD health, got %v", records)
	}
}

func TestRPCStoreErrorsKeepKind(t *testing.T) {
	backend := sqlstore.NewSQLStore(db.Config{Enabled: false}, nil)
	s := serializer.NewJSONSerializer()
	srv := server.NewRPCServer(common.ServerConfig{}, httptransport.NewHttpServerTransport(), s, backend)
	ts := httptest.NewServer(httptransport.NewHandler(srv.HandleRequest))
	defer ts.Close()

	rpcStore, err := client.NewRPCStore(clientConfig(ts.URL), httptransport.NewHttpClientTransport(), s)
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	defer rpcStore.Close()

	if _, err := rpcStore.Put(db.TablePwmOTP, "k", "v"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected Unavailable from a disabled store, got %v", err)
	}
	if records := rpcStore.HealthCheck(); len(records) != 0 {
		t.Errorf("Expected no health records from a disabled store, got %v", records)
	}
	if info := rpcStore.ServiceInfo(); len(info.StorageMethods) != 0 {
		t.Errorf("Expected no storage methods, got %v", info.StorageMethods)
	}
}

func TestRPCStoreServerDown(t *testing.T) {
	ts := httptest.NewServer(httptransport.NewHandler(func(req []byte) []byte { return req }))
	url := ts.URL
	ts.Close()

	rpcStore, err := client.NewRPCStore(clientConfig(url), httptransport.NewHttpClientTransport(), serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRPCStore failed: %v", err)
	}
	defer rpcStore.Close()

	if _, _, err := rpcStore.Get(db.TablePwmOTP, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected Unavailable, got %v", err)
	}
	records := rpcStore.HealthCheck()
	if health.Worst(records) != health.StatusWarn {
		t.Errorf("Expected WARN health, got %v", records)
	}
}
