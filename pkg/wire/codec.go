// Package wire registers the JSON gRPC codec shared by every client and
// server in this repository that exchanges plain Go structs instead of
// protoc-generated messages: the PD client, the KV/Coprocessor/Raft
// services, and their tests. The wire formats these stand in for (the PD
// protocol, the KV/Coprocessor/Raft service protocols) are referenced only
// by interface; only the RPC shape matters here.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered as a gRPC call content-subtype.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
