package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zdec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Marshal encodes v as JSON. With compress set the result is zstd-compressed and binary is true.
func Marshal(v any, compress bool) (data []byte, binary bool, err error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	if !compress {
		return b, false, nil
	}
	return zenc.EncodeAll(b, make([]byte, 0, len(b)/2)), true, nil
}

// Payload returns the JSON bytes of a received frame.
func Payload(data []byte, binary bool) ([]byte, error) {
	if !binary {
		return data, nil
	}
	b, err := zdec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd frame: %w", err)
	}
	return b, nil
}

func Unmarshal(data []byte, binary bool, v any) error {
	b, err := Payload(data, binary)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
