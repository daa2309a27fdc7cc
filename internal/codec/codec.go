// Package codec is the serialization boundary for hub wire messages.
// Messages travel as discrete websocket frames, so the codec works on
// whole byte slices rather than streams.
package codec

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}
