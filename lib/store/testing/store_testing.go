package testing

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
)

// StoreFactory creates a new, empty IStore instance.
type StoreFactory func() store.IStore

// RunStoreTests runs a comprehensive test suite for an IStore implementation.
// Every sub test gets a fresh store from factory.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Contains", func(t *testing.T) {
			testContains(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Size", func(t *testing.T) {
			testSize(t, factory())
		})

		t.Run("TableIsolation", func(t *testing.T) {
			testTableIsolation(t, factory())
		})

		t.Run("InvalidTable", func(t *testing.T) {
			testInvalidTable(t, factory())
		})

		t.Run("Iterator", func(t *testing.T) {
			testIterator(t, factory())
		})

		t.Run("IteratorEmpty", func(t *testing.T) {
			testIteratorEmpty(t, factory())
		})

		t.Run("IteratorAll", func(t *testing.T) {
			testIteratorAll(t, factory())
		})

		t.Run("HealthCheck", func(t *testing.T) {
			testHealthCheck(t, factory())
		})

		t.Run("ServiceInfo", func(t *testing.T) {
			testServiceInfo(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustPut(t testing.TB, s store.IStore, table db.Table, key, value string) bool {
	t.Helper()
	existed, err := s.Put(table, key, value)
	if err != nil {
		t.Fatalf("Put(%s, %s) failed: %v", table, key, err)
	}
	return existed
}

func collect(t testing.TB, it store.KeyIterator) []string {
	t.Helper()
	var keys []string
	for it.HasNext() {
		key, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed while HasNext was true: %v", err)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IStore) {
	defer s.Close()

	if existed := mustPut(t, s, db.TablePwmMeta, "k1", "v1"); existed {
		t.Errorf("Expected first Put to report an insert")
	}

	value, loaded, err := s.Get(db.TablePwmMeta, "k1")
	if err != nil || !loaded || value != "v1" {
		t.Errorf("Expected (v1, true, nil), got (%q, %t, %v)", value, loaded, err)
	}

	if existed := mustPut(t, s, db.TablePwmMeta, "k1", "v2"); !existed {
		t.Errorf("Expected second Put to report an update")
	}

	value, loaded, err = s.Get(db.TablePwmMeta, "k1")
	if err != nil || !loaded || value != "v2" {
		t.Errorf("Expected (v2, true, nil), got (%q, %t, %v)", value, loaded, err)
	}

	_, loaded, err = s.Get(db.TablePwmMeta, "nonexistent-key")
	if err != nil || loaded {
		t.Errorf("Expected nonexistent key to return loaded=false, got loaded=%t err=%v", loaded, err)
	}
}

func testContains(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, db.TablePwmTokens, "token", "{}")

	ok, err := s.Contains(db.TablePwmTokens, "token")
	if err != nil || !ok {
		t.Errorf("Expected Contains to be true, got %t (%v)", ok, err)
	}

	ok, err = s.Contains(db.TablePwmTokens, "missing")
	if err != nil || ok {
		t.Errorf("Expected Contains to be false, got %t (%v)", ok, err)
	}
}

func testRemove(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, db.TablePwmOTP, "k", "v")

	removed, err := s.Remove(db.TablePwmOTP, "k")
	if err != nil || !removed {
		t.Errorf("Expected Remove to delete the key, got %t (%v)", removed, err)
	}

	if ok, _ := s.Contains(db.TablePwmOTP, "k"); ok {
		t.Errorf("Expected key to be gone after Remove")
	}

	removed, err = s.Remove(db.TablePwmOTP, "k")
	if err != nil || removed {
		t.Errorf("Expected second Remove to be a no-op, got %t (%v)", removed, err)
	}
}

func testSize(t *testing.T, s store.IStore) {
	defer s.Close()

	n, err := s.Size(db.TablePwmAudit)
	if err != nil || n != 0 {
		t.Fatalf("Expected empty table, got %d (%v)", n, err)
	}

	for i := 0; i < 10; i++ {
		mustPut(t, s, db.TablePwmAudit, fmt.Sprintf("key-%d", i), "x")
	}
	// updates do not add rows
	mustPut(t, s, db.TablePwmAudit, "key-0", "y")

	n, err = s.Size(db.TablePwmAudit)
	if err != nil || n != 10 {
		t.Errorf("Expected size 10, got %d (%v)", n, err)
	}
}

func testTableIsolation(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, db.TablePwmResponses, "shared", "responses")
	mustPut(t, s, db.TablePwmIntruder, "shared", "intruder")

	for table, want := range map[db.Table]string{
		db.TablePwmResponses: "responses",
		db.TablePwmIntruder:  "intruder",
	} {
		value, _, err := s.Get(table, "shared")
		if err != nil || value != want {
			t.Errorf("Expected %s in %s, got %q (%v)", want, table, value, err)
		}
	}

	if n, _ := s.Size(db.TablePwmTokens); n != 0 {
		t.Errorf("Expected untouched table to be empty, got %d rows", n)
	}
}

func testInvalidTable(t *testing.T, s store.IStore) {
	defer s.Close()

	bogus := db.Table("NOT_A_TABLE")

	if _, err := s.Put(bogus, "k", "v"); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Put: expected InvalidArgument, got %v", err)
	}
	if _, _, err := s.Get(bogus, "k"); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Get: expected InvalidArgument, got %v", err)
	}
	if _, err := s.Size(bogus); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Size: expected InvalidArgument, got %v", err)
	}
	if _, err := s.Iterator(bogus); !errors.Is(err, store.ErrInvalidArgument) {
		t.Errorf("Iterator: expected InvalidArgument, got %v", err)
	}
}

func testIterator(t *testing.T, s store.IStore) {
	defer s.Close()

	// the meta table holds bookkeeping rows, so iterate a different one
	want := []string{"a", "b", "c", "d", "e"}
	for _, k := range want {
		mustPut(t, s, db.TablePwmResponses, k, "v-"+k)
	}

	it, err := s.Iterator(db.TablePwmResponses)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}

	if got := collect(t, it); !equal(got, want) {
		t.Errorf("Expected keys %v, got %v", want, got)
	}

	if it.HasNext() {
		t.Errorf("Expected HasNext to be false after exhaustion")
	}
	if _, err := it.Next(); !errors.Is(err, store.ErrIteratorExhausted) {
		t.Errorf("Expected IteratorExhausted, got %v", err)
	}
	if err := it.Remove(); !errors.Is(err, store.ErrUnsupportedOperation) {
		t.Errorf("Expected UnsupportedOperation, got %v", err)
	}
	if err := it.Close(); err != nil {
		t.Errorf("Expected Close to be idempotent, got %v", err)
	}

	// the store is still usable after iterating
	if n, err := s.Size(db.TablePwmResponses); err != nil || n != len(want) {
		t.Errorf("Expected size %d, got %d (%v)", len(want), n, err)
	}
}

func testIteratorEmpty(t *testing.T, s store.IStore) {
	defer s.Close()

	it, err := s.Iterator(db.TablePwmIntruder)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	defer it.Close()

	if it.HasNext() {
		t.Errorf("Expected empty iterator")
	}
	if _, err := it.Next(); !errors.Is(err, store.ErrIteratorExhausted) {
		t.Errorf("Expected IteratorExhausted, got %v", err)
	}
}

func testIteratorAll(t *testing.T, s store.IStore) {
	defer s.Close()

	for i := 0; i < 20; i++ {
		mustPut(t, s, db.TablePwmTokens, fmt.Sprintf("token-%02d", i), "x")
	}

	it, err := s.Iterator(db.TablePwmTokens)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}

	n := 0
	for range it.All() {
		n++
		if n == 5 {
			break
		}
	}
	if n != 5 {
		t.Errorf("Expected to stop after 5 keys, got %d", n)
	}
	if it.HasNext() {
		t.Errorf("Expected iterator to be closed after the loop ended")
	}

	// a second, complete pass
	it, err = s.Iterator(db.TablePwmTokens)
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	n = 0
	for range it.All() {
		n++
	}
	if n != 20 {
		t.Errorf("Expected 20 keys, got %d", n)
	}
}

func testHealthCheck(t *testing.T, s store.IStore) {
	defer s.Close()

	records := s.HealthCheck()
	if len(records) == 0 {
		t.Fatalf("Expected at least one health record")
	}
	if worst := health.Worst(records); worst != health.StatusGood {
		t.Errorf("Expected GOOD health, got %v", records)
	}
	for _, r := range records {
		if r.Topic != health.TopicDatabase {
			t.Errorf("Expected topic %s, got %s", health.TopicDatabase, r.Topic)
		}
	}
}

func testServiceInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, db.TablePwmMeta, "k", "v")

	if !s.ServiceInfo().Supports(db.StorageMethodDB) {
		t.Errorf("Expected open store to declare %s", db.StorageMethodDB)
	}
	if _, err := s.GetDBInfo(); err != nil {
		t.Errorf("GetDBInfo failed: %v", err)
	}
}

func testCollisionHandling(t *testing.T, s store.IStore) {
	defer s.Close()

	prefix := "collision-test-"
	numKeys := 200

	for i := 0; i < numKeys; i++ {
		mustPut(t, s, db.TablePwmAudit, fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("value-%d", i))
	}

	for i := 0; i < numKeys; i += 2 {
		if _, err := s.Remove(db.TablePwmAudit, fmt.Sprintf("%s%d", prefix, i)); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		value, exists, err := s.Get(db.TablePwmAudit, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %s should be deleted", key)
			}
		} else if !exists || value != fmt.Sprintf("value-%d", i) {
			t.Errorf("Key %s should still exist with its value, got %q", key, value)
		}
	}

	if n, _ := s.Size(db.TablePwmAudit); n != numKeys/2 {
		t.Errorf("Expected %d rows, got %d", numKeys/2, n)
	}
}

func testConcurrentUsage(t *testing.T, s store.IStore) {
	defer s.Close()

	numWorkers := 8
	opsPerWorker := 50

	var (
		wg         sync.WaitGroup
		errorCount atomic.Int32
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerId, i)
				if _, err := s.Put(db.TablePwmResponses, key, key); err != nil {
					errorCount.Add(1)
					continue
				}
				if value, ok, err := s.Get(db.TablePwmResponses, key); err != nil || !ok || value != key {
					errorCount.Add(1)
				}
			}
		}(w)
	}

	wg.Wait()

	if n := errorCount.Load(); n > 0 {
		t.Fatalf("Test had %d errors during parallel operations", n)
	}

	if n, err := s.Size(db.TablePwmResponses); err != nil || n != numWorkers*opsPerWorker {
		t.Errorf("Expected %d rows, got %d (%v)", numWorkers*opsPerWorker, n, err)
	}
}
