package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dbKV/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Messages are human readable, which is handy with curl against the http transport.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// json.Unmarshal keeps fields missing from b
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
