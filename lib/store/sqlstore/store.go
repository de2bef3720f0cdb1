package sqlstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/conn"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/lib/stats"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/dustin/go-humanize"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(logging.SQLStore)

const (
	// TestKey is the meta table key written by every health check.
	TestKey = "write-test-key"
	// RecentErrorWindow is how long a failure keeps the health check at CAUTION.
	RecentErrorWindow = time.Hour
)

// Store is the relational key-value store. Besides store.IStore it exposes
// the lifecycle state and a forced reconnect.
type Store struct {
	manager  *conn.Manager
	conf     db.Config
	recorder stats.Recorder

	errMu   sync.Mutex
	lastErr *store.Error

	now func() time.Time
}

var _ store.IStore = (*Store)(nil)

// NewSQLStore creates a store backed by the database described by conf.
// The connection is opened lazily by the first operation. A nil recorder
// discards telemetry.
func NewSQLStore(conf db.Config, recorder stats.Recorder) *Store {
	if recorder == nil {
		recorder = stats.Noop
	}

	s := &Store{
		recorder: recorder,
		now:      time.Now,
	}
	s.manager = conn.NewManager(conf, s.recordError)
	s.conf = s.manager.Config()

	return s
}

// Status returns the lifecycle state of the underlying connection.
func (s *Store) Status() conn.State {
	return s.manager.Status()
}

// Reconnect replaces the underlying connection. Iterators created before
// the reconnect stop yielding keys.
//
// Operations running concurrently with Reconnect are cancelled. Such an
// operation reports ExecutionFailure even if the database committed it
// before the cancel arrived, so a failed Put or Remove during a reconnect
// leaves the key in an unknown state. Callers that reconnect under load
// should re-read affected keys.
func (s *Store) Reconnect() error {
	_, err := s.manager.Reconnect()
	return err
}

// LastError returns the most recent Unavailable or ExecutionFailure, if any.
func (s *Store) LastError() *store.Error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// recordError keeps err as the last error if it describes an unreachable
// database or a failing statement.
func (s *Store) recordError(err *store.Error) {
	if err.Code != store.RetCUnavailable && err.Code != store.RetCExecutionFailure {
		return
	}
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// checkTable ensures table is one of the logical tables.
func checkTable(table db.Table) error {
	if !table.Valid() {
		return store.NewError(store.RetCInvalidArgument, fmt.Sprintf("unknown table %q", string(table)))
	}
	return nil
}

// begin validates the table and returns a verified connection.
func (s *Store) begin(table db.Table) (*conn.Connection, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return s.manager.EnsureReady()
}

// failure converts a statement error into an ExecutionFailure and records it.
func (s *Store) failure(op string, err error) error {
	e := store.WrapError(store.RetCExecutionFailure, op+" operation failed", err)
	s.recordError(e)
	return e
}

func (s *Store) trace(format string, args ...any) {
	if s.conf.TraceLogging {
		Logger.Debugf(format, args...)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Put(table db.Table, key, value string) (bool, error) {
	c, err := s.begin(table)
	if err != nil {
		return false, err
	}
	if len(key) > db.KeyLength {
		Logger.Warningf("put: key of %d bytes exceeds the %d byte key column of %s", len(key), db.KeyLength, table)
	}
	s.trace("attempting put operation for table=%s, key=%s", table, key)

	_, existed, err := c.Lookup(table, key)
	if err != nil {
		return false, s.failure("put", err)
	}
	s.recorder.RecordRead()

	if existed {
		err = c.Update(table, key, value)
	} else {
		err = c.Insert(table, key, value)
	}
	if err != nil {
		return false, s.failure("put", err)
	}
	s.recorder.RecordWrite()

	s.trace("put operation result: table=%s, key=%s, existed=%t", table, key, existed)
	return existed, nil
}

func (s *Store) Get(table db.Table, key string) (string, bool, error) {
	c, err := s.begin(table)
	if err != nil {
		return "", false, err
	}
	s.trace("attempting get operation for table=%s, key=%s", table, key)

	value, loaded, err := c.Lookup(table, key)
	if err != nil {
		return "", false, s.failure("get", err)
	}
	s.recorder.RecordRead()

	s.trace("get operation result: table=%s, key=%s, found=%t", table, key, loaded)
	return value, loaded, nil
}

func (s *Store) Contains(table db.Table, key string) (bool, error) {
	c, err := s.begin(table)
	if err != nil {
		return false, err
	}

	_, loaded, err := c.Lookup(table, key)
	if err != nil {
		return false, s.failure("contains", err)
	}
	s.recorder.RecordRead()

	s.trace("contains operation result: table=%s, key=%s, found=%t", table, key, loaded)
	return loaded, nil
}

func (s *Store) Remove(table db.Table, key string) (bool, error) {
	c, err := s.begin(table)
	if err != nil {
		return false, err
	}
	s.trace("attempting remove operation for table=%s, key=%s", table, key)

	_, loaded, err := c.Lookup(table, key)
	if err != nil {
		return false, s.failure("remove", err)
	}
	s.recorder.RecordRead()
	if !loaded {
		return false, nil
	}

	if err := c.Delete(table, key); err != nil {
		return false, s.failure("remove", err)
	}
	s.recorder.RecordWrite()

	s.trace("remove operation succeeded for table=%s, key=%s", table, key)
	return true, nil
}

func (s *Store) Size(table db.Table) (int, error) {
	c, err := s.begin(table)
	if err != nil {
		return 0, err
	}

	n, err := c.Count(table)
	if err != nil {
		return 0, s.failure("size", err)
	}
	s.recorder.RecordRead()

	return n, nil
}

func (s *Store) Iterator(table db.Table) (store.KeyIterator, error) {
	c, err := s.begin(table)
	if err != nil {
		return nil, err
	}

	rows, err := c.Keys(table)
	if err != nil {
		return nil, s.failure("get iterator", err)
	}

	return newIterator(table, rows, s.recorder), nil
}

func (s *Store) HealthCheck() []health.Record {
	if s.manager.Status() == conn.StateClosed {
		return nil
	}

	if _, err := s.manager.EnsureReady(); err != nil {
		e := asStoreError(err)
		s.recordError(e)
		return []health.Record{health.NewRecord(health.StatusWarn, health.TopicDatabase,
			"Database server is not available: "+e.DebugString())}
	}

	probe, _ := json.Marshal(map[string]string{
		"instance": s.conf.InstanceID,
		"date":     s.now().Format(time.RFC3339),
	})
	if _, err := s.Put(db.TablePwmMeta, TestKey, string(probe)); err != nil {
		return []health.Record{health.NewRecord(health.StatusWarn, health.TopicDatabase,
			"Error writing to database: "+asStoreError(err).DebugString())}
	}

	if last := s.LastError(); last != nil {
		age := s.now().Sub(last.Time)
		if age < RecentErrorWindow {
			msg := fmt.Sprintf("Database server was recently unavailable (%s at %s): %s",
				humanize.RelTime(last.Time, s.now(), "ago", "from now"),
				last.Time.Format(time.RFC3339), last.DebugString())
			return []health.Record{health.NewRecord(health.StatusCaution, health.TopicDatabase, msg)}
		}
	}

	return []health.Record{health.NewRecord(health.StatusGood, health.TopicDatabase,
		fmt.Sprintf("Database connection to %s okay", s.conf.ConnectionString))}
}

func (s *Store) ServiceInfo() store.ServiceInfo {
	if s.manager.Status() == conn.StateOpen {
		return store.ServiceInfo{StorageMethods: []db.DataStorageMethod{db.StorageMethodDB}}
	}
	return store.ServiceInfo{}
}

func (s *Store) GetDBInfo() (db.DatabaseInfo, error) {
	if _, err := s.manager.EnsureReady(); err != nil {
		return db.DatabaseInfo{}, err
	}
	info, ok := s.manager.Info()
	if !ok {
		return db.DatabaseInfo{}, store.NewError(store.RetCUnavailable, "database connection is not open")
	}
	return info, nil
}

func (s *Store) Close() {
	s.manager.Close()
}

// asStoreError returns err as *store.Error, wrapping foreign errors as internal errors.
func asStoreError(err error) *store.Error {
	if e, ok := err.(*store.Error); ok {
		return e
	}
	return store.WrapError(store.RetCInternalError, "unexpected error", err)
}
