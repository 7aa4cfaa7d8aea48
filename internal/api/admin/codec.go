// Package admin is the hand-maintained wire protocol of the knockd admin
// plane: request/reply messages in protowire encoding, a gRPC codec for
// them, and the service descriptor both sides share. No generated code; the
// protocol is small enough to keep by hand.
package admin

import (
	"encoding"
	"fmt"

	grpcencoding "google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype admin messages travel under.
const CodecName = "knock"

type codec struct{}

func (codec) Name() string { return CodecName }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("message %T does not marshal to binary", v)
	}
	return m.MarshalBinary()
}

func (codec) Unmarshal(data []byte, v any) error {
	u, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("message %T does not unmarshal from binary", v)
	}
	return u.UnmarshalBinary(data)
}

func init() {
	grpcencoding.RegisterCodec(codec{})
}
