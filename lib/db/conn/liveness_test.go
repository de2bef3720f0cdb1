package conn

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"testing"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/driver"
	"github.com/ValentinKolb/dbKV/lib/store"
)

const dialectNoPing = "sqlite-noping"

// noPingConn hides every optional interface of the wrapped connection,
// driver.Pinger included.
type noPingConn struct {
	sqldriver.Conn
}

type noPingConnector struct {
	sqldriver.Connector
}

func (c noPingConnector) Connect(ctx context.Context) (sqldriver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return noPingConn{conn}, nil
}

// registerNoPing registers a sqlite backed dialect whose connections cannot be pinged
func registerNoPing(t *testing.T) {
	t.Helper()

	handle, unload, err := driver.Load(db.Config{Driver: driver.DialectSQLite})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := handle.Driver()
	unload()

	raw, err := sql.Open("sqlite", "")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	sqliteDriver := raw.Driver()
	_ = raw.Close()

	d.Dialect = dialectNoPing
	d.NewConnector = func(connectionString, _, _ string) (sqldriver.Connector, error) {
		connector, err := driver.NewDSNConnector(sqliteDriver, connectionString)
		if err != nil {
			return nil, err
		}
		return noPingConnector{connector}, nil
	}

	if err := driver.Register(d); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	t.Cleanup(func() { driver.Unregister(dialectNoPing) })
}

func TestNativeLivenessSelected(t *testing.T) {
	m := NewManager(testConfig(t), nil)
	defer m.Close()

	if _, err := m.EnsureReady(); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if info, _ := m.Info(); info.Liveness != "ping" {
		t.Errorf("got liveness %q, want ping", info.Liveness)
	}
}

func TestQueryLiveness(t *testing.T) {
	registerNoPing(t)

	log := &errorLog{}
	conf := testConfig(t)
	conf.Driver = dialectNoPing
	m := NewManager(conf, log.handle)
	defer m.Close()

	first, err := m.EnsureReady()
	if err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if info, _ := m.Info(); info.Liveness != "query" {
		t.Fatalf("got liveness %q, want query", info.Liveness)
	}

	// a live connection passes the heartbeat lookup and is kept
	second, err := m.EnsureReady()
	if err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if second != first {
		t.Fatalf("live connection replaced: #%d -> #%d", first.Generation(), second.Generation())
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected errors on a live connection: %v", log.errs)
	}

	// break the connection behind the manager's back
	if err := first.conn.Close(); err != nil {
		t.Fatalf("closing connection failed: %v", err)
	}

	third, err := m.EnsureReady()
	if err != nil {
		t.Fatalf("EnsureReady after failure: %v", err)
	}
	if third == first || third.Generation() <= first.Generation() {
		t.Errorf("broken connection was not replaced: #%d -> #%d", first.Generation(), third.Generation())
	}
	if info, _ := m.Info(); info.Liveness != "query" {
		t.Errorf("got liveness %q after reconnect, want query", info.Liveness)
	}
	if len(log.errs) != 1 || log.errs[0].Code != store.RetCUnavailable {
		t.Errorf("expected one Unavailable error, got %v", log.errs)
	}

	if _, err := third.upsert(db.TablePwmOTP, "k", "v"); err != nil {
		t.Errorf("replacement connection is not usable: %v", err)
	}
}
