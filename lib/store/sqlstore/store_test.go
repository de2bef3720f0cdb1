package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/conn"
	"github.com/ValentinKolb/dbKV/lib/db/driver"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/stats"
	"github.com/ValentinKolb/dbKV/lib/store"
	storetesting "github.com/ValentinKolb/dbKV/lib/store/testing"
)

func testConfig(t *testing.T, dialect string) db.Config {
	t.Helper()
	return db.Config{
		Enabled:          true,
		Driver:           dialect,
		ConnectionString: filepath.Join(t.TempDir(), "kv.db"),
		InstanceID:       "test",
	}
}

func TestSQLStore(t *testing.T) {
	storetesting.RunStoreTests(t, "modernc", func() store.IStore {
		return NewSQLStore(testConfig(t, driver.DialectSQLite), nil)
	})

	// mattn/go-sqlite3 needs cgo
	cgoCheck := NewSQLStore(testConfig(t, driver.DialectSQLite3), nil)
	_, err := cgoCheck.GetDBInfo()
	cgoCheck.Close()
	if err != nil {
		t.Logf("skipping sqlite3 suite: %v", err)
		return
	}
	storetesting.RunStoreTests(t, "mattn", func() store.IStore {
		return NewSQLStore(testConfig(t, driver.DialectSQLite3), nil)
	})
}

func TestExampleScenario(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)
	defer s.Close()

	// the heartbeat row always lives in the meta table
	base, err := s.Size(db.TablePwmMeta)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}

	if existed, err := s.Put(db.TablePwmMeta, "a", "1"); err != nil || existed {
		t.Fatalf("first put: got (%t, %v), want (false, nil)", existed, err)
	}
	if value, ok, err := s.Get(db.TablePwmMeta, "a"); err != nil || !ok || value != "1" {
		t.Fatalf("get: got (%q, %t, %v), want (1, true, nil)", value, ok, err)
	}
	if existed, err := s.Put(db.TablePwmMeta, "a", "2"); err != nil || !existed {
		t.Fatalf("second put: got (%t, %v), want (true, nil)", existed, err)
	}
	if n, err := s.Size(db.TablePwmMeta); err != nil || n != base+1 {
		t.Fatalf("size: got (%d, %v), want %d", n, err, base+1)
	}
	if removed, err := s.Remove(db.TablePwmMeta, "a"); err != nil || !removed {
		t.Fatalf("remove: got (%t, %v), want (true, nil)", removed, err)
	}
	if n, err := s.Size(db.TablePwmMeta); err != nil || n != base {
		t.Fatalf("size: got (%d, %v), want %d", n, err, base)
	}
}

func TestDisabledStore(t *testing.T) {
	conf := testConfig(t, driver.DialectSQLite)
	conf.Enabled = false
	s := NewSQLStore(conf, nil)
	defer s.Close()

	if _, err := s.Put(db.TablePwmMeta, "k", "v"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Put: got %v, want Unavailable", err)
	}
	if _, _, err := s.Get(db.TablePwmMeta, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Get: got %v, want Unavailable", err)
	}
	if _, err := s.Contains(db.TablePwmMeta, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Contains: got %v, want Unavailable", err)
	}
	if _, err := s.Remove(db.TablePwmMeta, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Remove: got %v, want Unavailable", err)
	}
	if _, err := s.Size(db.TablePwmMeta); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Size: got %v, want Unavailable", err)
	}
	if _, err := s.Iterator(db.TablePwmMeta); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Iterator: got %v, want Unavailable", err)
	}
	if records := s.HealthCheck(); len(records) != 0 {
		t.Errorf("HealthCheck: got %v, want no records", records)
	}
	if info := s.ServiceInfo(); len(info.StorageMethods) != 0 {
		t.Errorf("ServiceInfo: got %v, want none", info.StorageMethods)
	}
	if s.LastError() != nil {
		t.Errorf("disabled store must not record errors, got %v", s.LastError())
	}
}

func TestClose(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)

	if _, err := s.Put(db.TablePwmMeta, "k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.Close()
	s.Close()

	if got := s.Status(); got != conn.StateClosed {
		t.Errorf("got state %s, want CLOSED", got)
	}
	if _, _, err := s.Get(db.TablePwmMeta, "k"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Get after close: got %v, want Unavailable", err)
	}
	if records := s.HealthCheck(); len(records) != 0 {
		t.Errorf("HealthCheck after close: got %v, want no records", records)
	}
}

func TestServiceInfoFollowsState(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)

	if s.ServiceInfo().Supports(db.StorageMethodDB) {
		t.Error("store declared DB storage before opening")
	}
	if _, err := s.Contains(db.TablePwmMeta, "k"); err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !s.ServiceInfo().Supports(db.StorageMethodDB) {
		t.Error("open store did not declare DB storage")
	}

	s.Close()
	if s.ServiceInfo().Supports(db.StorageMethodDB) {
		t.Error("closed store declared DB storage")
	}
}

func TestTelemetry(t *testing.T) {
	m := stats.NewManager("test")
	defer m.Stop()

	s := NewSQLStore(testConfig(t, driver.DialectSQLite), m)
	defer s.Close()

	if _, err := s.Put(db.TablePwmOTP, "k1", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if reads, writes := m.Totals(); reads != 1 || writes != 1 {
		t.Errorf("after put: got reads=%d writes=%d, want 1/1", reads, writes)
	}

	_, _, _ = s.Get(db.TablePwmOTP, "k1")
	_, _ = s.Contains(db.TablePwmOTP, "k1")
	_, _ = s.Size(db.TablePwmOTP)
	if reads, writes := m.Totals(); reads != 4 || writes != 1 {
		t.Errorf("after reads: got reads=%d writes=%d, want 4/1", reads, writes)
	}

	// a miss is a read but no write
	if removed, _ := s.Remove(db.TablePwmOTP, "missing"); removed {
		t.Fatal("removed a missing key")
	}
	if reads, writes := m.Totals(); reads != 5 || writes != 1 {
		t.Errorf("after remove miss: got reads=%d writes=%d, want 5/1", reads, writes)
	}

	// one read per cursor advance, including the final one
	_, _ = s.Put(db.TablePwmOTP, "k2", "v")
	before, _ := m.Totals()
	it, err := s.Iterator(db.TablePwmOTP)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	for range it.All() {
	}
	if reads, _ := m.Totals(); reads-before != 3 {
		t.Errorf("iterating 2 keys recorded %d reads, want 3", reads-before)
	}
}

func TestIteratorAfterReconnect(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)
	defer s.Close()

	for _, k := range []string{"a", "b", "c", "d"} {
		if _, err := s.Put(db.TablePwmIntruder, k, k); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	it, err := s.Iterator(db.TablePwmIntruder)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	defer it.Close()

	if err := s.Reconnect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	// the buffered key is still delivered, then the iteration ends
	if !it.HasNext() {
		t.Fatal("expected the buffered key")
	}
	if _, err := it.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if it.HasNext() {
		t.Error("iterator kept yielding keys from a retired connection")
	}

	// the store itself keeps working
	if n, err := s.Size(db.TablePwmIntruder); err != nil || n != 4 {
		t.Errorf("got size (%d, %v), want 4", n, err)
	}
}

func TestPutsDuringReconnect(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)
	defer s.Close()

	const workers, perWorker = 4, 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed []string
		failures  []error
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				key := fmt.Sprintf("w%d-%d", w, i)
				_, err := s.Put(db.TablePwmAudit, key, "v")
				mu.Lock()
				if err != nil {
					failures = append(failures, err)
				} else {
					committed = append(committed, key)
				}
				mu.Unlock()
			}
		}()
	}
	for range 5 {
		if err := s.Reconnect(); err != nil && !reopenError(err) {
			t.Errorf("Reconnect failed: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	// interrupted puts fail as statements or while reopening
	for _, err := range failures {
		if !errors.Is(err, store.ErrExecutionFailure) && !reopenError(err) {
			t.Errorf("unexpected error from an interrupted put: %v", err)
		}
	}

	// every acknowledged put is durable
	for _, key := range committed {
		if found, err := s.Contains(db.TablePwmAudit, key); err != nil || !found {
			t.Errorf("acknowledged key %s: got (%t, %v), want (true, nil)", key, found, err)
		}
	}

	// a failed put may still have committed
	n, err := s.Size(db.TablePwmAudit)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if n < len(committed) || n > workers*perWorker {
		t.Errorf("got size %d, want between %d and %d", n, len(committed), workers*perWorker)
	}
}

// reopenError reports errors a reconnect can return while the retired
// connection still holds a lock
func reopenError(err error) bool {
	return errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrSchemaFailure)
}

func TestExecutionFailureRecordsLastError(t *testing.T) {
	conf := testConfig(t, driver.DialectSQLite)
	s := NewSQLStore(conf, nil)
	defer s.Close()

	if _, err := s.Put(db.TablePwmAudit, "k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, err := sql.Open("sqlite", conf.ConnectionString)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := raw.Exec("DROP TABLE PWM_AUDIT"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	_ = raw.Close()

	if _, _, err := s.Get(db.TablePwmAudit, "k"); !errors.Is(err, store.ErrExecutionFailure) {
		t.Fatalf("got %v, want ExecutionFailure", err)
	}
	last := s.LastError()
	if last == nil || last.Code != store.RetCExecutionFailure {
		t.Fatalf("got last error %v, want ExecutionFailure", last)
	}

	records := s.HealthCheck()
	if len(records) != 1 || records[0].Status != health.StatusCaution {
		t.Fatalf("got %v, want one CAUTION record", records)
	}
	if !strings.Contains(records[0].Message, "recently unavailable") {
		t.Errorf("unexpected message %q", records[0].Message)
	}
}

func TestHealthCheck(t *testing.T) {
	conf := testConfig(t, driver.DialectSQLite)
	s := NewSQLStore(conf, nil)
	defer s.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	records := s.HealthCheck()
	if len(records) != 1 || records[0].Status != health.StatusGood {
		t.Fatalf("got %v, want one GOOD record", records)
	}
	if want := "Database connection to " + conf.ConnectionString + " okay"; records[0].Message != want {
		t.Errorf("got %q, want %q", records[0].Message, want)
	}

	// the probe row is written
	value, ok, err := s.Get(db.TablePwmMeta, TestKey)
	if err != nil || !ok || !strings.Contains(value, `"instance":"test"`) {
		t.Errorf("probe row missing or malformed: %q (%t, %v)", value, ok, err)
	}

	// a recent error degrades to CAUTION
	s.recordError(&store.Error{Code: store.RetCUnavailable, Msg: "boom", Time: now.Add(-5 * time.Minute)})
	records = s.HealthCheck()
	if len(records) != 1 || records[0].Status != health.StatusCaution {
		t.Fatalf("got %v, want one CAUTION record", records)
	}
	if !strings.Contains(records[0].Message, "5 minutes ago") {
		t.Errorf("message lacks the error age: %q", records[0].Message)
	}

	// an old error does not
	s.recordError(&store.Error{Code: store.RetCUnavailable, Msg: "boom", Time: now.Add(-2 * time.Hour)})
	if records = s.HealthCheck(); health.Worst(records) != health.StatusGood {
		t.Errorf("got %v, want GOOD", records)
	}

	// schema failures are not kept as last error
	s.recordError(&store.Error{Code: store.RetCSchemaFailure, Msg: "ignored", Time: now})
	if last := s.LastError(); last.Code != store.RetCUnavailable {
		t.Errorf("got last error %v, want the previous Unavailable", last)
	}
}

func TestHealthCheckUnavailable(t *testing.T) {
	conf := testConfig(t, driver.DialectSQLite)
	conf.Driver = "unknown"
	s := NewSQLStore(conf, nil)
	defer s.Close()

	records := s.HealthCheck()
	if len(records) != 1 || records[0].Status != health.StatusWarn {
		t.Fatalf("got %v, want one WARN record", records)
	}
	if !strings.HasPrefix(records[0].Message, "Database server is not available: ") {
		t.Errorf("unexpected message %q", records[0].Message)
	}
	if last := s.LastError(); last == nil || last.Code != store.RetCUnavailable {
		t.Errorf("got last error %v, want Unavailable", last)
	}
}

func TestGetDBInfo(t *testing.T) {
	s := NewSQLStore(testConfig(t, driver.DialectSQLite), nil)
	defer s.Close()

	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.Dialect != driver.DialectSQLite || info.ProductName == "" {
		t.Errorf("incomplete info: %+v", info)
	}
}
