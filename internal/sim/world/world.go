package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	ErrOutOfBounds = errors.New("position out of bounds")
	ErrOccupied    = errors.New("tile not passable")
	ErrNoCreature  = errors.New("no such creature")
	ErrNoObject    = errors.New("no such object")
)

// World is the mutable map of one round.
// All state must be accessed only from the round loop goroutine; other goroutines get Snapshots.
type World struct {
	width, height int
	tiles         []Tile

	creatures map[int64]*Creature
	objects   map[int64]*Object
	ground    map[int64]*GroundObject

	events *EventLog

	changed    []Position
	changedSet map[Position]struct{}

	nextID int64
}

func New(width, height int) *World {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("world: bad size %dx%d", width, height))
	}
	return &World{
		width:      width,
		height:     height,
		tiles:      make([]Tile, width*height),
		creatures:  map[int64]*Creature{},
		objects:    map[int64]*Object{},
		ground:     map[int64]*GroundObject{},
		events:     NewEventLog(),
		changedSet: map[Position]struct{}{},
	}
}

func (w *World) Width() int   { return w.width }
func (w *World) Height() int  { return w.height }
func (w *World) Bounds() Rect { return Rect{W: w.width, H: w.height} }

func (w *World) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.width && p.Y < w.height
}

// Tile returns the live tile at p, or nil when p is outside the map.
func (w *World) Tile(p Position) *Tile {
	if !w.InBounds(p) {
		return nil
	}
	return &w.tiles[p.Y*w.width+p.X]
}

// NextID hands out ids shared by creatures, objects, ground objects, inventory slots and events.
func (w *World) NextID() int64 {
	w.nextID++
	return w.nextID
}

// SetTerrain replaces the static part of a tile.
func (w *World) SetTerrain(p Position, passable bool, layers ...TileType) error {
	t := w.Tile(p)
	if t == nil {
		return ErrOutOfBounds
	}
	t.Passable = passable
	t.Layers = append(t.Layers[:0], layers...)
	w.MarkChanged(p)
	return nil
}

func (w *World) SetDoor(p Position, open bool) error {
	t := w.Tile(p)
	if t == nil {
		return ErrOutOfBounds
	}
	t.Door = &Door{Open: open}
	w.MarkChanged(p)
	return nil
}

// MarkChanged records p for the next view delta.
func (w *World) MarkChanged(p Position) {
	if !w.InBounds(p) {
		return
	}
	if _, ok := w.changedSet[p]; ok {
		return
	}
	w.changedSet[p] = struct{}{}
	w.changed = append(w.changed, p)
}

// TakeChanged returns the positions changed since the last call and resets the list.
func (w *World) TakeChanged() []Position {
	out := w.changed
	w.changed = nil
	w.changedSet = map[Position]struct{}{}
	return out
}

func (w *World) AddCreature(c *Creature) error {
	t := w.Tile(c.Pos)
	if t == nil {
		return ErrOutOfBounds
	}
	if !t.PresentlyPassable() {
		return ErrOccupied
	}
	if c.ID == 0 {
		c.ID = w.NextID()
	}
	t.Creature = c.ID
	w.creatures[c.ID] = c
	w.MarkChanged(c.Pos)
	return nil
}

func (w *World) RemoveCreature(id int64) {
	c := w.creatures[id]
	if c == nil {
		return
	}
	if t := w.Tile(c.Pos); t != nil && t.Creature == id {
		t.Creature = 0
	}
	delete(w.creatures, id)
	w.MarkChanged(c.Pos)
}

// MoveCreature relocates a creature onto a presently passable tile.
func (w *World) MoveCreature(id int64, to Position) error {
	c := w.creatures[id]
	if c == nil {
		return ErrNoCreature
	}
	dst := w.Tile(to)
	if dst == nil {
		return ErrOutOfBounds
	}
	if !dst.PresentlyPassable() {
		return ErrOccupied
	}
	if src := w.Tile(c.Pos); src != nil && src.Creature == id {
		src.Creature = 0
	}
	w.MarkChanged(c.Pos)
	dst.Creature = id
	c.Pos = to
	w.MarkChanged(to)
	return nil
}

func (w *World) Creature(id int64) *Creature { return w.creatures[id] }

// CreatureAt returns the creature standing on p, if any.
func (w *World) CreatureAt(p Position) *Creature {
	t := w.Tile(p)
	if t == nil || t.Creature == 0 {
		return nil
	}
	return w.creatures[t.Creature]
}

// Creatures returns every creature ordered by id.
func (w *World) Creatures() []*Creature {
	out := make([]*Creature, 0, len(w.creatures))
	for _, c := range w.creatures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) CreatureCount() int { return len(w.creatures) }

func (w *World) AddObject(o *Object) *Object {
	if o.ID == 0 {
		o.ID = w.NextID()
	}
	w.objects[o.ID] = o
	return o
}

func (w *World) Object(id int64) *Object { return w.objects[id] }

// PlaceObject puts an object definition on the ground at p.
func (w *World) PlaceObject(objectID int64, p Position) (*GroundObject, error) {
	if w.objects[objectID] == nil {
		return nil, ErrNoObject
	}
	t := w.Tile(p)
	if t == nil {
		return nil, ErrOutOfBounds
	}
	g := &GroundObject{ID: w.NextID(), ObjectID: objectID, Pos: p}
	w.ground[g.ID] = g
	t.Ground = append(t.Ground, g.ID)
	w.MarkChanged(p)
	return g, nil
}

// TakeGround removes a ground object and returns its object id.
func (w *World) TakeGround(groundID int64) (int64, error) {
	g := w.ground[groundID]
	if g == nil {
		return 0, ErrNoObject
	}
	if t := w.Tile(g.Pos); t != nil {
		t.removeGround(groundID)
	}
	delete(w.ground, groundID)
	w.MarkChanged(g.Pos)
	return g.ObjectID, nil
}

func (w *World) Ground(id int64) *GroundObject { return w.ground[id] }

func (w *World) GroundCount() int { return len(w.ground) }

func (w *World) Events() *EventLog { return w.events }

// Emit records an event for e.Tick, assigning its id.
func (w *World) Emit(e Event) Event {
	e.ID = w.NextID()
	w.events.Add(e)
	return e
}

// FindFree picks a random presently passable tile inside r, trying at most tries times.
func (w *World) FindFree(rng *rand.Rand, r Rect, tries int) (Position, bool) {
	if r.Empty() {
		return Position{}, false
	}
	for i := 0; i < tries; i++ {
		p := Position{X: r.X + rng.Intn(r.W), Y: r.Y + rng.Intn(r.H)}
		if t := w.Tile(p); t.PresentlyPassable() {
			return p, true
		}
	}
	return Position{}, false
}
