package serializer

import "github.com/ValentinKolb/dbKV/rpc/common"

// IRPCSerializer converts Messages to and from their wire format.
// Implementations must be safe for concurrent use.
type IRPCSerializer interface {
	// Serialize encodes msg. The returned slice is owned by the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. All fields of msg are overwritten,
	// so a Message may be reused across calls.
	Deserialize(b []byte, msg *common.Message) error
}
