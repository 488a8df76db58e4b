package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_DecodeNChecksLength(t *testing.T) {
	enc := EncodeRLE([]uint16{4, 4, 4, 5})
	if _, err := DecodeRLEN(enc, 4); err != nil {
		t.Fatalf("DecodeRLEN: %v", err)
	}
	if _, err := DecodeRLEN(enc, 3); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := DecodeRLEN(enc, 6); err == nil {
		t.Fatalf("expected short error")
	}
}

func TestLayers_PadsShallowTiles(t *testing.T) {
	tiles := [][]uint16{{1}, {1, 3}, {2}, {2, 3, 9}}
	planes := EncodeLayers(tiles)
	if len(planes) != 3 {
		t.Fatalf("planes=%d, want 3", len(planes))
	}
	got, err := DecodeLayers(planes, len(tiles))
	if err != nil {
		t.Fatalf("DecodeLayers: %v", err)
	}
	for i := range tiles {
		if len(got[i]) != len(tiles[i]) {
			t.Fatalf("tile %d: got %v want %v", i, got[i], tiles[i])
		}
		for j := range tiles[i] {
			if got[i][j] != tiles[i][j] {
				t.Fatalf("tile %d: got %v want %v", i, got[i], tiles[i])
			}
		}
	}
}

func TestBits(t *testing.T) {
	in := []bool{true, false, false, true, true, false, true, false, true, true}
	out, err := DecodeBits(EncodeBits(in), len(in))
	if err != nil {
		t.Fatalf("DecodeBits: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("bit %d differs", i)
		}
	}
	if _, err := DecodeBits(EncodeBits(in), 30); err == nil {
		t.Fatalf("expected size error")
	}
}
