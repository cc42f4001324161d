package llmpb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package and requested by
// the client via grpc.CallContentSubtype. Hand-authoring the generated
// protobuf descriptor/reflection code that `protoc` would normally
// produce from a .proto file is not something this module does without
// running protoc, so the wire format is JSON instead of the binary
// protobuf encoding the real LLM service would eventually speak —
// everything else about the RPC (ClientConn, streaming, deadlines,
// metadata) is the genuine grpc-go client library.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("llmpb: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
