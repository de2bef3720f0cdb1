package serializer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Put request
		{
			MsgType: common.MsgTKVPut,
			Table:   string(db.TablePwmOTP),
			Key:     "test-key",
			Value:   "test-value",
		},

		// Get response
		{
			MsgType: common.MsgTKVGet,
			Value:   "test-value",
			Ok:      true,
		},

		// Size response
		{
			MsgType: common.MsgTKVSize,
			Count:   42,
		},

		// Keys response
		{
			MsgType: common.MsgTKVKeys,
			Keys:    []string{"a", "b", "key with spaces", ""},
		},

		// Health response
		{
			MsgType: common.MsgTHealth,
			Health: []health.Record{
				health.NewRecord(health.StatusGood, health.TopicDatabase, "Database connection to kv.db okay"),
				health.NewRecord(health.StatusCaution, health.TopicDatabase, "recently unavailable"),
			},
		},

		// Service response
		{
			MsgType:        common.MsgTService,
			StorageMethods: []db.DataStorageMethod{db.StorageMethodDB},
		},

		// Info response
		{
			MsgType: common.MsgTInfo,
			Info: &db.DatabaseInfo{
				Dialect:        "sqlite",
				DriverName:     "*sqlite.Driver",
				DriverVersion:  "v1.38.0",
				ProductName:    "SQLite",
				ProductVersion: "3.46.0",
				Liveness:       "ping",
			},
		},

		// Error response
		{
			MsgType: common.MsgTKVGet,
			Err:     "get operation failed: no such table",
			ErrCode: store.RetCExecutionFailure,
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is skipped since JSON rejects it
			for msgType := common.MsgTSuccess; msgType <= common.MsgTInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestErrorSurvivesRoundTrip checks that the error kind is kept on the wire
func TestErrorSurvivesRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			cause := store.NewError(store.RetCUnavailable, "database is closed")
			data, err := serializer.Serialize(*common.NewSizeResponse(0, cause))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			got := result.ToError()
			if got == nil {
				t.Fatal("Expected an error after round trip")
			}
			if !errors.Is(got, store.ErrUnavailable) {
				t.Errorf("Expected Unavailable, got %v", got)
			}
		})
	}
}

// TestDeserializeResets tests that a reused message does not keep old fields
func TestDeserializeResets(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			full, err := serializer.Serialize(testMessages()[1])
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			empty, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var msg common.Message
			if err := serializer.Deserialize(full, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if err := serializer.Deserialize(empty, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTSuccess}) {
				t.Errorf("Expected a clean message, got %+v", msg)
			}
		})
	}
}

// TestBinaryKeepsFirstError checks that decoding stops at the first broken
// field and later fields stay empty
func TestBinaryKeepsFirstError(t *testing.T) {
	serializer := NewBinarySerializer()

	// table claims 5 bytes but only 1 follows, key and value are never reached
	data := []byte{3, 0, 7, 0, 0, 0, 5, 'a'}

	var msg common.Message
	err := serializer.Deserialize(data, &msg)
	if err == nil || err.Error() != "data too short for table" {
		t.Fatalf("got error %v, want data too short for table", err)
	}
	if msg.Table != "" || msg.Key != "" || msg.Value != "" {
		t.Errorf("fields after the error were decoded: %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // MsgType and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0},
			expectError: false,
		},
		{
			name:        "Invalid length for table",
			data:        []byte{3, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{3, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Key count larger than data",
			data:        []byte{8, 0, 32, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
		{
			name:        "Missing error code",
			data:        []byte{2, 2, 0, 0, 0, 0, 1, 'x'},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
