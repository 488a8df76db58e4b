package world

import "sort"

// Snapshot is a read-only copy of the map taken once per tick and shared by every AI worker.
// Nothing in it aliases live World state.
type Snapshot struct {
	Tick          uint64
	RoundSecsLeft int

	width, height int
	tiles         []snapTile
	creatures     map[int64]CreatureView
}

type snapTile struct {
	passable bool
	creature int64
	ground   int
}

// Snapshot copies the terrain and creature layout for readers outside the round goroutine.
func (w *World) Snapshot(tick uint64, roundSecsLeft int) *Snapshot {
	s := &Snapshot{
		Tick:          tick,
		RoundSecsLeft: roundSecsLeft,
		width:         w.width,
		height:        w.height,
		tiles:         make([]snapTile, len(w.tiles)),
		creatures:     make(map[int64]CreatureView, len(w.creatures)),
	}
	for i := range w.tiles {
		t := &w.tiles[i]
		s.tiles[i] = snapTile{
			passable: t.Passable && (t.Door == nil || t.Door.Open),
			creature: t.Creature,
			ground:   len(t.Ground),
		}
	}
	for id, c := range w.creatures {
		s.creatures[id] = c.View()
	}
	return s
}

func (s *Snapshot) Width() int  { return s.width }
func (s *Snapshot) Height() int { return s.height }

func (s *Snapshot) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.width && p.Y < s.height
}

// Passable reports terrain passability, ignoring creatures.
func (s *Snapshot) Passable(p Position) bool {
	if !s.InBounds(p) {
		return false
	}
	return s.tiles[p.Y*s.width+p.X].passable
}

// Free reports whether p is passable and unoccupied.
func (s *Snapshot) Free(p Position) bool {
	if !s.InBounds(p) {
		return false
	}
	t := s.tiles[p.Y*s.width+p.X]
	return t.passable && t.creature == 0
}

func (s *Snapshot) HasGround(p Position) bool {
	if !s.InBounds(p) {
		return false
	}
	return s.tiles[p.Y*s.width+p.X].ground > 0
}

func (s *Snapshot) Creature(id int64) (CreatureView, bool) {
	c, ok := s.creatures[id]
	return c, ok
}

func (s *Snapshot) CreatureAt(p Position) (CreatureView, bool) {
	if !s.InBounds(p) {
		return CreatureView{}, false
	}
	id := s.tiles[p.Y*s.width+p.X].creature
	if id == 0 {
		return CreatureView{}, false
	}
	return s.Creature(id)
}

// CreaturesIn returns the live creatures inside r, excluding exclude.
func (s *Snapshot) CreaturesIn(r Rect, exclude int64) []CreatureView {
	var out []CreatureView
	for id, c := range s.creatures {
		if id == exclude || c.Dead() || !r.Contains(c.Pos) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
