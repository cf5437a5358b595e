package rpcproto

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this codec registers under
// ("application/grpc+gob"). The client forces it on every call; the
// server picks it up from the process-wide codec registry by that
// content-subtype.
const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// gobCodec is the dynamicCodec-style escape hatch from
// encoding.Codec (Marshal/Unmarshal/Name) that lets this package run real
// gRPC service calls over plain Go structs without a compiled .proto
// descriptor.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("rpcproto: gob marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("rpcproto: gob unmarshal: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return codecName }
