package world

import "testing"

func TestClampBox(t *testing.T) {
	cases := []struct {
		name       string
		x, y, w, h int
		want       Rect
	}{
		{"inside", 10, 10, 20, 10, Rect{X: 10, Y: 10, W: 20, H: 10}},
		{"negative", -5, -3, 20, 10, Rect{X: 0, Y: 0, W: 20, H: 10}},
		{"past right and bottom", 95, 45, 20, 10, Rect{X: 80, Y: 40, W: 20, H: 10}},
		{"larger than map", 3, 3, 200, 100, Rect{X: 0, Y: 0, W: 200, H: 100}},
	}
	for _, tc := range cases {
		got := ClampBox(tc.x, tc.y, tc.w, tc.h, 100, 50)
		if got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestCenterBox_StaysOnMap(t *testing.T) {
	for x := 0; x < 161; x += 7 {
		for y := 0; y < 191; y += 11 {
			r := CenterBox(Position{X: x, Y: y}, 80, 40, 161, 191)
			if r.X < 0 || r.Y < 0 || r.X+r.W > 161 || r.Y+r.H > 191 {
				t.Fatalf("box %+v escapes map for center (%d,%d)", r, x, y)
			}
			if !r.Contains(Position{X: x, Y: y}) {
				t.Fatalf("box %+v does not contain its center (%d,%d)", r, x, y)
			}
		}
	}
}

func TestDistanceAndAdjacent(t *testing.T) {
	a := Position{X: 2, Y: 2}
	if Distance(a, Position{X: 5, Y: 3}) != 3 {
		t.Fatalf("distance")
	}
	if !Adjacent(a, Position{X: 3, Y: 3}) {
		t.Fatalf("diagonal should be adjacent")
	}
	if Adjacent(a, a) {
		t.Fatalf("a position is not adjacent to itself")
	}
}

func TestTileTypePacking(t *testing.T) {
	tt := TileType{Number: 1234, Rotation: 3}
	if got := UnpackTileType(tt.Packed()); got != tt {
		t.Fatalf("got %+v want %+v", got, tt)
	}
}
