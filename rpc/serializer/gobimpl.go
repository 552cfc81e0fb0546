package serializer

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/yanqingluo/dble/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{
		buffers: &sync.Pool{New: func() interface{} { return new(bytes.Buffer) }},
	}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding.
// Every message is encoded with a fresh encoder, so each payload carries its own type
// information and can be decoded independently.
type gobSerializerImpl struct {
	buffers *sync.Pool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	buf := g.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer g.buffers.Put(buf)

	if err := gob.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}
	// the buffer goes back to the pool, hand out a copy
	return append([]byte(nil), buf.Bytes()...), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob skips zero values, reset the target first
	*msg = common.Message{}
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}
