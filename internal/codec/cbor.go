package codec

import "github.com/fxamacker/cbor/v2"

// CBOR implements Marshaler and Unmarshaler using fxamacker/cbor.
// It is the wire codec for realtime messages exchanged between
// clients and the hub.
type CBOR struct{}

var _ Marshaler = (*CBOR)(nil)
var _ Unmarshaler = (*CBOR)(nil)

func (c *CBOR) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c *CBOR) Unmarshal(data []byte, dst any) error {
	return cbor.Unmarshal(data, dst)
}
