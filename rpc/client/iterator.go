package client

import (
	"iter"

	"github.com/ValentinKolb/dbKV/lib/store"
)

var _ store.KeyIterator = (*sliceIterator)(nil)

// sliceIterator implements store.KeyIterator over a fetched key snapshot
type sliceIterator struct {
	keys   []string
	pos    int
	closed bool
}

func newSliceIterator(keys []string) *sliceIterator {
	return &sliceIterator{keys: keys}
}

func (it *sliceIterator) HasNext() bool {
	return !it.closed && it.pos < len(it.keys)
}

func (it *sliceIterator) Next() (string, error) {
	if !it.HasNext() {
		return "", store.NewError(store.RetCIteratorExhausted, "iterator completed")
	}
	key := it.keys[it.pos]
	it.pos++
	return key, nil
}

func (it *sliceIterator) Remove() error {
	return store.NewError(store.RetCUnsupportedOperation, "remove not supported")
}

func (it *sliceIterator) Close() error {
	it.closed = true
	it.keys = nil
	return nil
}

func (it *sliceIterator) All() iter.Seq[string] {
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
