// Package viewsync streams the visible part of the world to clients as ordered full and delta frames.
package viewsync

import (
	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/encoding"
	"roguecloud.io/internal/sim/world"
)

// ConnState is the per-connection view state. It belongs to the round goroutine.
type ConnState struct {
	origin    world.Position
	hasOrigin bool
	nextSeq   uint64
	lastTick  uint64
	sent      map[int64]struct{}
	full      bool
}

func NewConnState() *ConnState {
	return &ConnState{sent: map[int64]struct{}{}}
}

// RequestFull makes the next frame a full frame and forgets which definitions were sent.
func (s *ConnState) RequestFull() { s.full = true }

func (s *ConnState) NextSeq() uint64 { return s.nextSeq }

// Origin returns the last viewport origin, ok false before the first frame.
func (s *ConnState) Origin() (world.Position, bool) { return s.origin, s.hasOrigin }

// Input is what the round knows about one connection for this tick.
type Input struct {
	RoundID       int64
	Tick          uint64
	RoundSecsLeft int
	Follow        world.Position
	ViewW, ViewH  int
	// Changed lists tiles modified since the previous tick, shared by every connection.
	Changed []world.Position
	Self    *protocol.SelfView
	// Refs are extra object definitions the client needs, such as the player's inventory.
	Refs []int64
}

// Viewport computes the clamped box for a followed position.
func Viewport(follow world.Position, w, h, width, height int) world.Rect {
	if w > width {
		w = width
	}
	if h > height {
		h = height
	}
	return world.CenterBox(follow, w, h, width, height)
}

// Encode produces the next frame for one connection and advances its sequence number.
func Encode(st *ConnState, w *world.World, in Input) protocol.ViewFrameMsg {
	vp := Viewport(in.Follow, in.ViewW, in.ViewH, w.Width(), w.Height())
	dx, dy := vp.X-st.origin.X, vp.Y-st.origin.Y
	full := !st.hasOrigin || st.full ||
		(dx != 0 && dy != 0) || abs(dx) >= vp.W || abs(dy) >= vp.H

	msg := protocol.ViewFrameMsg{
		Type:            protocol.TypeViewFrame,
		ProtocolVersion: protocol.Version,
		RoundID:         in.RoundID,
		Tick:            in.Tick,
		Seq:             st.nextSeq,
		Full:            full,
		Viewport:        protocol.Rect{X: vp.X, Y: vp.Y, W: vp.W, H: vp.H},
		World:           protocol.Size{W: w.Width(), H: w.Height()},
		RoundSecsLeft:   in.RoundSecsLeft,
		Self:            in.Self,
	}

	var covered []world.Rect
	var events []world.Event
	if full {
		st.sent = map[int64]struct{}{}
		covered = []world.Rect{vp}
		events = world.InBox(w.Events().All(), vp)
	} else {
		if strip, ok := exposedStrip(vp, dx, dy); ok {
			covered = append(covered, strip)
		}
		for _, p := range in.Changed {
			if !vp.Contains(p) || inAny(covered, p) {
				continue
			}
			covered = append(covered, world.Rect{X: p.X, Y: p.Y, W: 1, H: 1})
		}
		events = world.InBox(w.Events().Since(st.lastTick+1), vp)
	}

	refs := newRefSet(st)
	for _, r := range covered {
		msg.Regions = append(msg.Regions, encodeRegion(w, r))
		for y := r.Y; y < r.Y+r.H; y++ {
			for x := r.X; x < r.X+r.W; x++ {
				for _, gid := range w.Tile(world.Position{X: x, Y: y}).Ground {
					if g := w.Ground(gid); g != nil {
						msg.Ground = append(msg.Ground, protocol.FromGround(g))
						refs.add(g.ObjectID)
					}
				}
			}
		}
	}
	for y := vp.Y; y < vp.Y+vp.H; y++ {
		for x := vp.X; x < vp.X+vp.W; x++ {
			c := w.CreatureAt(world.Position{X: x, Y: y})
			if c == nil {
				continue
			}
			v := c.View()
			msg.Creatures = append(msg.Creatures, protocol.FromCreature(v))
			refs.add(v.Weapon)
			for _, id := range v.Armour {
				refs.add(id)
			}
		}
	}
	for _, e := range events {
		msg.Events = append(msg.Events, protocol.FromEvent(e))
		refs.add(e.ObjectID)
	}
	for _, id := range in.Refs {
		refs.add(id)
	}
	for _, id := range refs.ids {
		if o := w.Object(id); o != nil {
			msg.Objects = append(msg.Objects, protocol.FromObject(o))
			st.sent[id] = struct{}{}
		}
	}

	st.origin = vp.Origin()
	st.hasOrigin = true
	st.full = false
	st.lastTick = in.Tick
	st.nextSeq++
	return msg
}

// exposedStrip is the part of vp that was outside the viewport before a shift of (dx, dy) along one axis.
func exposedStrip(vp world.Rect, dx, dy int) (world.Rect, bool) {
	switch {
	case dx > 0:
		return world.Rect{X: vp.X + vp.W - dx, Y: vp.Y, W: dx, H: vp.H}, true
	case dx < 0:
		return world.Rect{X: vp.X, Y: vp.Y, W: -dx, H: vp.H}, true
	case dy > 0:
		return world.Rect{X: vp.X, Y: vp.Y + vp.H - dy, W: vp.W, H: dy}, true
	case dy < 0:
		return world.Rect{X: vp.X, Y: vp.Y, W: vp.W, H: -dy}, true
	}
	return world.Rect{}, false
}

func encodeRegion(w *world.World, r world.Rect) protocol.Region {
	n := r.W * r.H
	passable := make([]bool, 0, n)
	layers := make([][]uint16, 0, n)
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			t := w.Tile(world.Position{X: x, Y: y})
			passable = append(passable, t.Passable && (t.Door == nil || t.Door.Open))
			packed := make([]uint16, len(t.Layers))
			for i, l := range t.Layers {
				packed[i] = l.Packed()
			}
			layers = append(layers, packed)
		}
	}
	return protocol.Region{
		X:        r.X,
		Y:        r.Y,
		W:        r.W,
		H:        r.H,
		Passable: encoding.EncodeBits(passable),
		Layers:   encoding.EncodeLayers(layers),
	}
}

func inAny(rs []world.Rect, p world.Position) bool {
	for _, r := range rs {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// refSet collects object ids not yet sent to a connection, in first-seen order.
type refSet struct {
	st   *ConnState
	seen map[int64]struct{}
	ids  []int64
}

func newRefSet(st *ConnState) *refSet {
	return &refSet{st: st, seen: map[int64]struct{}{}}
}

func (r *refSet) add(id int64) {
	if id == 0 {
		return
	}
	if _, ok := r.st.sent[id]; ok {
		return
	}
	if _, ok := r.seen[id]; ok {
		return
	}
	r.seen[id] = struct{}{}
	r.ids = append(r.ids, id)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
