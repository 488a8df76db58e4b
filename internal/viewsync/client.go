package viewsync

import (
	"errors"
	"fmt"
	"sort"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/encoding"
	"roguecloud.io/internal/sim/world"
)

const clientEventLogSize = 200

var ErrBadFrame = errors.New("viewsync: malformed frame")

// ClientTile is the client's copy of one map tile.
type ClientTile struct {
	Known    bool
	Passable bool
	Layers   []world.TileType
}

// ClientWorld is the client-side world model rebuilt from frames.
type ClientWorld struct {
	RoundID       int64
	Tick          uint64
	Seq           uint64
	RoundSecsLeft int
	Viewport      world.Rect
	Self          *protocol.SelfView

	width, height int
	tiles         []ClientTile
	creatures     map[int64]protocol.CreatureView
	objects       map[int64]protocol.ObjectDef
	ground        map[int64]protocol.GroundItem
	events        []protocol.EventView
	eventIDs      map[int64]struct{}
}

func newClientWorld() *ClientWorld {
	return &ClientWorld{
		creatures: map[int64]protocol.CreatureView{},
		objects:   map[int64]protocol.ObjectDef{},
		ground:    map[int64]protocol.GroundItem{},
		eventIDs:  map[int64]struct{}{},
	}
}

func (cw *ClientWorld) Width() int  { return cw.width }
func (cw *ClientWorld) Height() int { return cw.height }

func (cw *ClientWorld) Tile(p world.Position) (ClientTile, bool) {
	if p.X < 0 || p.Y < 0 || p.X >= cw.width || p.Y >= cw.height {
		return ClientTile{}, false
	}
	return cw.tiles[p.Y*cw.width+p.X], true
}

func (cw *ClientWorld) Creature(id int64) (protocol.CreatureView, bool) {
	c, ok := cw.creatures[id]
	return c, ok
}

// Creatures returns known creatures ordered by id.
func (cw *ClientWorld) Creatures() []protocol.CreatureView {
	out := make([]protocol.CreatureView, 0, len(cw.creatures))
	for _, c := range cw.creatures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (cw *ClientWorld) Object(id int64) (protocol.ObjectDef, bool) {
	o, ok := cw.objects[id]
	return o, ok
}

// GroundAt returns the ground items lying on p.
func (cw *ClientWorld) GroundAt(p world.Position) []protocol.GroundItem {
	var out []protocol.GroundItem
	for _, g := range cw.ground {
		if g.Pos == [2]int{p.X, p.Y} {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events returns up to the last 200 events, oldest first.
func (cw *ClientWorld) Events() []protocol.EventView {
	return append([]protocol.EventView(nil), cw.events...)
}

func (cw *ClientWorld) resize(w, h int) {
	if w == cw.width && h == cw.height {
		return
	}
	cw.width, cw.height = w, h
	cw.tiles = make([]ClientTile, w*h)
}

func (cw *ClientWorld) apply(f *protocol.ViewFrameMsg) error {
	if f.World.W <= 0 || f.World.H <= 0 {
		return fmt.Errorf("%w: world size %dx%d", ErrBadFrame, f.World.W, f.World.H)
	}
	if f.Full && cw.RoundID != f.RoundID {
		cw.ground = map[int64]protocol.GroundItem{}
		cw.creatures = map[int64]protocol.CreatureView{}
		cw.tiles = nil
		cw.width, cw.height = 0, 0
	}
	cw.resize(f.World.W, f.World.H)

	type decoded struct {
		r        world.Rect
		passable []bool
		layers   [][]uint16
	}
	regions := make([]decoded, 0, len(f.Regions))
	for _, r := range f.Regions {
		rect := world.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
		if r.W <= 0 || r.H <= 0 || r.X < 0 || r.Y < 0 || r.X+r.W > cw.width || r.Y+r.H > cw.height {
			return fmt.Errorf("%w: region %+v outside %dx%d", ErrBadFrame, rect, cw.width, cw.height)
		}
		n := r.W * r.H
		passable, err := encoding.DecodeBits(r.Passable, n)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		layers, err := encoding.DecodeLayers(r.Layers, n)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		regions = append(regions, decoded{r: rect, passable: passable, layers: layers})
	}

	for _, d := range regions {
		for id, g := range cw.ground {
			if d.r.Contains(protocol.ToPosition(g.Pos)) {
				delete(cw.ground, id)
			}
		}
		i := 0
		for y := d.r.Y; y < d.r.Y+d.r.H; y++ {
			for x := d.r.X; x < d.r.X+d.r.W; x++ {
				t := ClientTile{Known: true, Passable: d.passable[i]}
				for _, v := range d.layers[i] {
					t.Layers = append(t.Layers, world.UnpackTileType(v))
				}
				cw.tiles[y*cw.width+x] = t
				i++
			}
		}
	}
	for _, g := range f.Ground {
		cw.ground[g.ID] = g
	}

	vp := world.Rect{X: f.Viewport.X, Y: f.Viewport.Y, W: f.Viewport.W, H: f.Viewport.H}
	for id, c := range cw.creatures {
		if vp.Contains(protocol.ToPosition(c.Pos)) {
			delete(cw.creatures, id)
		}
	}
	for _, c := range f.Creatures {
		cw.creatures[c.ID] = c
	}
	for _, o := range f.Objects {
		cw.objects[o.ID] = o
	}
	for _, e := range f.Events {
		if _, dup := cw.eventIDs[e.ID]; dup {
			continue
		}
		cw.eventIDs[e.ID] = struct{}{}
		cw.events = append(cw.events, e)
	}
	if over := len(cw.events) - clientEventLogSize; over > 0 {
		for _, e := range cw.events[:over] {
			delete(cw.eventIDs, e.ID)
		}
		cw.events = append([]protocol.EventView(nil), cw.events[over:]...)
	}

	cw.RoundID = f.RoundID
	cw.Tick = f.Tick
	cw.Seq = f.Seq
	cw.RoundSecsLeft = f.RoundSecsLeft
	cw.Viewport = vp
	cw.Self = f.Self
	return nil
}

// ClientView reorders frames by sequence number and applies them to a ClientWorld.
// Not safe for concurrent use.
type ClientView struct {
	world    *ClientWorld
	expected uint64
	started  bool
	pending  map[uint64]*protocol.ViewFrameMsg
}

func NewClientView() *ClientView {
	return &ClientView{world: newClientWorld(), pending: map[uint64]*protocol.ViewFrameMsg{}}
}

func (v *ClientView) World() *ClientWorld { return v.world }

// Expected is the next sequence number the view can apply.
func (v *ClientView) Expected() uint64 { return v.expected }

func (v *ClientView) Buffered() int { return len(v.pending) }

// Receive applies f, or buffers it when earlier frames are still missing, and returns the
// sequence numbers applied by this call in order. Frames older than the expected one are dropped.
func (v *ClientView) Receive(f *protocol.ViewFrameMsg) ([]uint64, error) {
	if f == nil {
		return nil, nil
	}
	if f.Full {
		if v.started && f.Seq < v.expected && f.RoundID == v.world.RoundID {
			return nil, nil
		}
		newRound := f.RoundID != v.world.RoundID
		for seq, pf := range v.pending {
			if seq <= f.Seq || (newRound && pf.RoundID != f.RoundID) {
				delete(v.pending, seq)
			}
		}
		if err := v.world.apply(f); err != nil {
			return nil, err
		}
		v.started = true
		v.expected = f.Seq + 1
		applied := []uint64{f.Seq}
		return v.cascade(applied)
	}

	if !v.started || f.Seq > v.expected {
		v.pending[f.Seq] = f
		return nil, nil
	}
	if f.Seq < v.expected {
		return nil, nil
	}
	if err := v.world.apply(f); err != nil {
		return nil, err
	}
	v.expected++
	return v.cascade([]uint64{f.Seq})
}

// cascade applies buffered frames for as long as the next one is already here.
func (v *ClientView) cascade(applied []uint64) ([]uint64, error) {
	next, ok := v.pending[v.expected]
	if !ok {
		return applied, nil
	}
	delete(v.pending, v.expected)
	if err := v.world.apply(next); err != nil {
		return applied, err
	}
	applied = append(applied, next.Seq)
	v.expected++
	return v.cascade(applied)
}

// Reset forgets everything, used when a new round starts with a fresh connection.
func (v *ClientView) Reset() {
	v.world = newClientWorld()
	v.expected = 0
	v.started = false
	v.pending = map[uint64]*protocol.ViewFrameMsg{}
}
