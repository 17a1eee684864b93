package transport

import (
	"encoding/json"
	"fmt"
)

// codecName is the content-subtype the gateway negotiates: application/grpc+json.
const codecName = "json"

// jsonCodec encodes gateway messages as JSON. The gateway messages are plain
// Go structs shared with the core, so no generated protobuf types are needed.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gateway codec: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("gateway codec: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return codecName
}
