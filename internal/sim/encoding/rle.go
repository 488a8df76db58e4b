package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of packed tile layers into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	return decodeRLE(b64, -1)
}

// DecodeRLEN decodes exactly want values and fails on any other length.
func DecodeRLEN(b64 string, want int) ([]uint16, error) {
	out, err := decodeRLE(b64, want)
	if err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, fmt.Errorf("rle: decoded %d values, want %d", len(out), want)
	}
	return out, nil
}

func decodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	if limit > 0 {
		out = make([]uint16, 0, limit)
	}
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", b)
		}
		if limit >= 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("rle: run overflows %d values", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}

// EncodeLayers encodes a row-major grid of per-tile layer stacks as one RLE string per depth.
// Tiles with fewer layers than the deepest stack are padded with 0.
func EncodeLayers(tiles [][]uint16) []string {
	depth := 0
	for _, t := range tiles {
		if len(t) > depth {
			depth = len(t)
		}
	}
	out := make([]string, depth)
	plane := make([]uint16, len(tiles))
	for d := 0; d < depth; d++ {
		for i, t := range tiles {
			plane[i] = 0
			if d < len(t) {
				plane[i] = t[d]
			}
		}
		out[d] = EncodeRLE(plane)
	}
	return out
}

// DecodeLayers reverses EncodeLayers for a region of n tiles, dropping the 0 padding.
func DecodeLayers(planes []string, n int) ([][]uint16, error) {
	tiles := make([][]uint16, n)
	for d, p := range planes {
		vals, err := DecodeRLEN(p, n)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", d, err)
		}
		for i, v := range vals {
			if v != 0 {
				tiles[i] = append(tiles[i], v)
			}
		}
	}
	return tiles, nil
}

// EncodeBits packs flags LSB-first into base64.
func EncodeBits(flags []bool) string {
	raw := make([]byte, (len(flags)+7)/8)
	for i, f := range flags {
		if f {
			raw[i/8] |= 1 << (i % 8)
		}
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeBits(b64 string, n int) ([]bool, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != (n+7)/8 {
		return nil, fmt.Errorf("bits: got %d bytes for %d flags", len(raw), n)
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = raw[i/8]&(1<<(i%8)) != 0
	}
	return out, nil
}
