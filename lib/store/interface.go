package store

import (
	"fmt"
	"iter"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface for interacting with the relational key–value store.
// Every table argument must be one of the logical tables of the db package.
// Operations return a *Error (as error) on failure.
type IStore interface {
	// Put stores value under key, returning whether the key already existed
	// (true = updated, false = inserted).
	Put(table db.Table, key, value string) (existed bool, err error)
	// Get returns the value for a key. The boolean return value indicates whether a value was found.
	Get(table db.Table, key string) (value string, loaded bool, err error)
	// Contains reports whether Get would return a value for key.
	Contains(table db.Table, key string) (loaded bool, err error)
	// Remove deletes key, returning whether a row was removed.
	Remove(table db.Table, key string) (removed bool, err error)
	// Size returns the number of rows in table.
	Size(table db.Table) (count int, err error)
	// Iterator returns a forward-only sequence over the keys of table.
	// Errors are only returned at construction.
	Iterator(table db.Table) (it KeyIterator, err error)
	// HealthCheck reports the health of the store. It never fails.
	HealthCheck() []health.Record
	// ServiceInfo declares the storage capabilities of the store in its current state.
	ServiceInfo() ServiceInfo
	// GetDBInfo returns debug information about the underlying database connection.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases all resources. It is idempotent and never fails.
	Close()
}

// KeyIterator is a lazy, finite, forward-only and single-pass sequence of keys.
// It must not be shared between goroutines.
type KeyIterator interface {
	// HasNext reports whether another key is available. It never advances the sequence.
	HasNext() bool
	// Next returns the next key. After exhaustion it fails with RetCIteratorExhausted.
	Next() (key string, err error)
	// Remove is not supported and always fails with RetCUnsupportedOperation.
	Remove() error
	// Close releases the underlying cursor. It is idempotent.
	Close() error
	// All adapts the iterator to a range-over-func sequence. The iterator is
	// closed when the loop ends.
	All() iter.Seq[string]
}

// ServiceInfo declares the storage methods a service currently supports.
type ServiceInfo struct {
	StorageMethods []db.DataStorageMethod `json:"storage_methods"`
}

// Supports reports whether method is declared.
func (i ServiceInfo) Supports(method db.DataStorageMethod) bool {
	for _, m := range i.StorageMethods {
		if m == method {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message, the time the error occurred and an optional cause.
type Error struct {
	Code RetCode   // The return code
	Msg  string    // The error message.
	Time time.Time // When the error occurred.
	Err  error     // The underlying cause, may be nil.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("KVStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, store.ErrUnavailable) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Msg == "" && t.Err == nil
}

// DebugString returns the error in the form used by health messages.
func (e *Error) DebugString() string {
	return fmt.Sprintf("%s (%s)", e.Error(), e.Time.Format(time.RFC3339))
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Time: time.Now(),
	}
}

// WrapError creates a new KVStoreError with the given code, message and cause.
func WrapError(code RetCode, msg string, err error) *Error {
	e := NewError(code, msg)
	e.Err = err
	return e
}

// Sentinel errors for use with errors.Is.
var (
	ErrUnavailable          = &Error{Code: RetCUnavailable}
	ErrSchemaFailure        = &Error{Code: RetCSchemaFailure}
	ErrExecutionFailure     = &Error{Code: RetCExecutionFailure}
	ErrUnsupportedOperation = &Error{Code: RetCUnsupportedOperation}
	ErrIteratorExhausted    = &Error{Code: RetCIteratorExhausted}
	ErrInvalidArgument      = &Error{Code: RetCInvalidArgument}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported.
	RetCUnavailable                         // 3: Store disabled, closed or unreachable.
	RetCSchemaFailure                       // 4: Table or index creation failed.
	RetCExecutionFailure                    // 5: A statement failed against an open connection.
	RetCIteratorExhausted                   // 6: Next called on a finished iterator.
	RetCInvalidArgument                     // 7: Unknown table or malformed request.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCUnavailable:
		return "Unavailable"
	case RetCSchemaFailure:
		return "SchemaFailure"
	case RetCExecutionFailure:
		return "ExecutionFailure"
	case RetCIteratorExhausted:
		return "IteratorExhausted"
	case RetCInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}
