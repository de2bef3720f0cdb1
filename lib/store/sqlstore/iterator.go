package sqlstore

import (
	"iter"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/stats"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/jmoiron/sqlx"
)

// keyIterator streams the keys of a table from an open cursor, buffering one
// key ahead so HasNext never touches the database.
//
// The cursor belongs to the connection that was current when the iterator was
// created. If that connection is retired the cursor fails, which ends the
// iteration like any other cursor error.
type keyIterator struct {
	table    db.Table
	rows     *sqlx.Rows
	recorder stats.Recorder
	next     string
	finished bool
}

var _ store.KeyIterator = (*keyIterator)(nil)

func newIterator(table db.Table, rows *sqlx.Rows, recorder stats.Recorder) *keyIterator {
	it := &keyIterator{
		table:    table,
		rows:     rows,
		recorder: recorder,
	}
	it.advance()
	return it
}

// advance buffers the next key or finishes the iterator. Cursor errors are
// logged and end the iteration.
func (it *keyIterator) advance() {
	defer it.recorder.RecordRead()

	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			Logger.Warningf("unexpected error during result set iteration of %s: %v", it.table, err)
		}
		_ = it.Close()
		return
	}

	if err := it.rows.Scan(&it.next); err != nil {
		Logger.Warningf("unexpected error during result set iteration of %s: %v", it.table, err)
		_ = it.Close()
	}
}

func (it *keyIterator) HasNext() bool {
	return !it.finished
}

func (it *keyIterator) Next() (string, error) {
	if it.finished {
		return "", store.NewError(store.RetCIteratorExhausted, "iterator completed")
	}
	key := it.next
	it.advance()
	return key, nil
}

func (it *keyIterator) Remove() error {
	return store.NewError(store.RetCUnsupportedOperation, "remove not supported")
}

func (it *keyIterator) Close() error {
	if it.finished {
		return nil
	}
	it.finished = true
	if err := it.rows.Close(); err != nil {
		Logger.Errorf("error closing inner result set in iterator: %v", err)
		return err
	}
	return nil
}

func (it *keyIterator) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		defer it.Close()
		for it.HasNext() {
			key, err := it.Next()
			if err != nil || !yield(key) {
				return
			}
		}
	}
}
