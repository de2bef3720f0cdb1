package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Table string `json:"table,omitempty"` // Used for: all table operations
	Key   string `json:"key,omitempty"`   // Used for: Put, Get, Contains, Remove
	Value string `json:"value,omitempty"` // Used for: Put (request), Get (response)

	// Response only fields
	Ok             bool                   `json:"ok,omitempty"`              // Used for: Put (existed), Get (loaded), Contains, Remove responses
	Count          int                    `json:"count,omitempty"`           // Used for: Size responses
	Keys           []string               `json:"keys,omitempty"`            // Used for: Keys responses
	Health         []health.Record        `json:"health,omitempty"`          // Used for: Health responses
	StorageMethods []db.DataStorageMethod `json:"storage_methods,omitempty"` // Used for: Service responses
	Info           *db.DatabaseInfo       `json:"info,omitempty"`            // Used for: Info responses

	Err     string        `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode store.RetCode `json:"err_code,omitempty"` // The store.RetCode of Err
}

// ToError returns the error carried by the message as *store.Error, or nil.
func (m *Message) ToError() error {
	if m.Err == "" {
		return nil
	}
	code := m.ErrCode
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return &store.Error{Code: code, Msg: m.Err, Time: time.Now()}
}

// setErr fills Err and ErrCode from err. *store.Error keeps its code, any
// other error becomes an internal error.
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var se *store.Error
	if errors.As(err, &se) {
		m.ErrCode = se.Code
		m.Err = se.Msg
		if se.Err != nil {
			m.Err = fmt.Sprintf("%s: %v", se.Msg, se.Err)
		}
		return m
	}
	m.ErrCode = store.RetCInternalError
	m.Err = err.Error()
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPutRequest creates a new Put request
func NewPutRequest(table db.Table, key, value string) *Message {
	return &Message{
		MsgType: MsgTKVPut,
		Table:   string(table),
		Key:     key,
		Value:   value,
	}
}

// NewPutResponse creates a new Put response
func NewPutResponse(existed bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVPut,
		Ok:      existed,
	}
	return msg.setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(table db.Table, key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Table:   string(table),
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value string, loaded bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVGet,
		Value:   value,
		Ok:      loaded,
	}
	return msg.setErr(err)
}

// NewContainsRequest creates a new Contains request
func NewContainsRequest(table db.Table, key string) *Message {
	return &Message{
		MsgType: MsgTKVContains,
		Table:   string(table),
		Key:     key,
	}
}

// NewContainsResponse creates a new Contains response
func NewContainsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVContains,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(table db.Table, key string) *Message {
	return &Message{
		MsgType: MsgTKVRemove,
		Table:   string(table),
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(removed bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVRemove,
		Ok:      removed,
	}
	return msg.setErr(err)
}

// NewSizeRequest creates a new Size request
func NewSizeRequest(table db.Table) *Message {
	return &Message{
		MsgType: MsgTKVSize,
		Table:   string(table),
	}
}

// NewSizeResponse creates a new Size response
func NewSizeResponse(count int, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSize,
		Count:   count,
	}
	return msg.setErr(err)
}

// NewKeysRequest creates a new Keys request
func NewKeysRequest(table db.Table) *Message {
	return &Message{
		MsgType: MsgTKVKeys,
		Table:   string(table),
	}
}

// NewKeysResponse creates a new Keys response
func NewKeysResponse(keys []string, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVKeys,
		Keys:    keys,
	}
	return msg.setErr(err)
}

// NewHealthRequest creates a new Health request
func NewHealthRequest() *Message {
	return &Message{MsgType: MsgTHealth}
}

// NewHealthResponse creates a new Health response
func NewHealthResponse(records []health.Record) *Message {
	return &Message{
		MsgType: MsgTHealth,
		Health:  records,
	}
}

// NewServiceRequest creates a new Service request
func NewServiceRequest() *Message {
	return &Message{MsgType: MsgTService}
}

// NewServiceResponse creates a new Service response
func NewServiceResponse(info store.ServiceInfo) *Message {
	return &Message{
		MsgType:        MsgTService,
		StorageMethods: info.StorageMethods,
	}
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{MsgType: MsgTInfo}
	if err == nil {
		msg.Info = &info
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		ErrCode: code,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVPut:
		return "put"
	case MsgTKVGet:
		return "get"
	case MsgTKVContains:
		return "contains"
	case MsgTKVRemove:
		return "remove"
	case MsgTKVSize:
		return "size"
	case MsgTKVKeys:
		return "keys"
	case MsgTHealth:
		return "health"
	case MsgTService:
		return "service"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "put":
		*t = MsgTKVPut
	case "get":
		*t = MsgTKVGet
	case "contains":
		*t = MsgTKVContains
	case "remove":
		*t = MsgTKVRemove
	case "size":
		*t = MsgTKVSize
	case "keys":
		*t = MsgTKVKeys
	case "health":
		*t = MsgTHealth
	case "service":
		*t = MsgTService
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore table operations

	MsgTKVPut      // Insert or update a key
	MsgTKVGet      // Get a value by key
	MsgTKVContains // Check if a key exists
	MsgTKVRemove   // Delete a key
	MsgTKVSize     // Count the rows of a table
	MsgTKVKeys     // List all keys of a table

	// IStore service operations

	MsgTHealth  // Run a health check
	MsgTService // Query the declared storage methods
	MsgTInfo    // Query the database debug properties
)
