package world

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(dx, dy int) Position { return Position{X: p.X + dx, Y: p.Y + dy} }

// Distance is the Chebyshev distance: the number of single steps (diagonals allowed) between a and b.
func Distance(a, b Position) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Adjacent reports whether b is one step away from a.
func Adjacent(a, b Position) bool { return a != b && Distance(a, b) == 1 }

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) Origin() Position { return Position{X: r.X, Y: r.Y} }

func (r Rect) Contains(p Position) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X < r.X+r.W && p.Y < r.Y+r.H
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// ClampBox moves a w*h box with top-left (x, y) so that it lies inside a width*height map.
// A box larger than the map is pinned to the origin.
func ClampBox(x, y, w, h, width, height int) Rect {
	if x+w > width {
		x = width - w
	}
	if y+h > height {
		y = height - h
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return Rect{X: x, Y: y, W: w, H: h}
}

// CenterBox returns the w*h box centered on p, clamped to the map.
func CenterBox(p Position, w, h, width, height int) Rect {
	return ClampBox(p.X-w/2, p.Y-h/2, w, h, width, height)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
