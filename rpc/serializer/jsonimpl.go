package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yanqingluo/dble/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Message types are written as names (e.g. "reserve"), which keeps the payload readable
// when debugging with curl against the http transport.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// fields missing in the payload must not keep values of a reused message
	*msg = common.Message{}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}
