package viewsync

import (
	"math/rand"
	"testing"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/world"
)

func testWorld(t *testing.T, w, h int) *world.World {
	t.Helper()
	wd := world.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			layers := []world.TileType{{Number: 1}}
			if (x*7+y*3)%11 == 0 {
				layers = append(layers, world.TileType{Number: 9, Rotation: uint8(x % 4)})
			}
			if err := wd.SetTerrain(world.Position{X: x, Y: y}, true, layers...); err != nil {
				t.Fatalf("SetTerrain: %v", err)
			}
		}
	}
	wd.TakeChanged()
	return wd
}

func sameTiles(t *testing.T, a, b *ClientWorld, r world.Rect) {
	t.Helper()
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			p := world.Position{X: x, Y: y}
			ta, _ := a.Tile(p)
			tb, _ := b.Tile(p)
			if ta.Known != tb.Known || ta.Passable != tb.Passable || len(ta.Layers) != len(tb.Layers) {
				t.Fatalf("tile %+v differs: %+v vs %+v", p, ta, tb)
			}
			for i := range ta.Layers {
				if ta.Layers[i] != tb.Layers[i] {
					t.Fatalf("tile %+v layer %d differs: %+v vs %+v", p, i, ta.Layers, tb.Layers)
				}
			}
			if ga, gb := a.GroundAt(p), b.GroundAt(p); len(ga) != len(gb) {
				t.Fatalf("ground at %+v differs: %v vs %v", p, ga, gb)
			}
		}
	}
}

func TestEncode_DeltasMatchSingleFullFrame(t *testing.T) {
	w := testWorld(t, 60, 45)
	rng := rand.New(rand.NewSource(3))
	potion := w.AddObject(&world.Object{Kind: world.ObjectDrinkable, Name: "Potion", Effect: &world.Effect{Kind: world.EffectLife, Magnitude: 1, RemainingTurns: 2}})

	st := NewConnState()
	client := NewClientView()
	follow := world.Position{X: 10, Y: 10}
	moves := []world.Position{{X: 1}, {X: 1}, {Y: 1}, {X: -1}, {Y: -1}, {X: 1, Y: 1}, {X: 2}, {Y: 3}}

	var fullFrames int
	for tick := uint64(1); tick <= 120; tick++ {
		// Mutate some tiles, in and out of view.
		for i := 0; i < 4; i++ {
			p := world.Position{X: rng.Intn(w.Width()), Y: rng.Intn(w.Height())}
			_ = w.SetTerrain(p, rng.Intn(3) > 0, world.TileType{Number: uint16(1 + rng.Intn(20))})
		}
		if tick%5 == 0 {
			p := world.Position{X: rng.Intn(w.Width()), Y: rng.Intn(w.Height())}
			if _, err := w.PlaceObject(potion.ID, p); err != nil {
				t.Fatalf("PlaceObject: %v", err)
			}
		}
		m := moves[rng.Intn(len(moves))]
		follow = world.Position{X: clamp(follow.X+m.X, 0, w.Width()-1), Y: clamp(follow.Y+m.Y, 0, w.Height()-1)}

		f := Encode(st, w, Input{Tick: tick, Follow: follow, ViewW: 20, ViewH: 12, Changed: w.TakeChanged()})
		if f.Full {
			fullFrames++
		}
		if f.Seq != tick-1 {
			t.Fatalf("seq=%d at tick %d", f.Seq, tick)
		}
		if _, err := client.Receive(&f); err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}
	if fullFrames < 1 || fullFrames > 60 {
		t.Fatalf("unexpected number of full frames: %d", fullFrames)
	}

	fresh := NewClientView()
	final := Encode(NewConnState(), w, Input{Tick: 120, Follow: follow, ViewW: 20, ViewH: 12})
	if !final.Full {
		t.Fatalf("first frame for a connection must be full")
	}
	if _, err := fresh.Receive(&final); err != nil {
		t.Fatalf("Receive full: %v", err)
	}
	sameTiles(t, client.World(), fresh.World(), fresh.World().Viewport)
	if client.World().Viewport != fresh.World().Viewport {
		t.Fatalf("viewport %+v vs %+v", client.World().Viewport, fresh.World().Viewport)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func TestClientView_ReordersAndCascades(t *testing.T) {
	w := testWorld(t, 30, 30)
	st := NewConnState()
	var frames []protocol.ViewFrameMsg
	follow := world.Position{X: 10, Y: 10}
	for tick := uint64(1); tick <= 4; tick++ {
		_ = w.SetTerrain(world.Position{X: 10, Y: int(tick) + 5}, false, world.TileType{Number: uint16(40 + tick)})
		frames = append(frames, Encode(st, w, Input{Tick: tick, Follow: follow, ViewW: 10, ViewH: 10, Changed: w.TakeChanged()}))
		follow.X++
	}

	v := NewClientView()
	var order []uint64
	for _, i := range []int{0, 3, 1, 2} {
		applied, err := v.Receive(&frames[i])
		if err != nil {
			t.Fatalf("Receive seq %d: %v", frames[i].Seq, err)
		}
		order = append(order, applied...)
	}
	want := []uint64{0, 1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("applied %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("applied %v, want %v", order, want)
		}
	}
	if v.Buffered() != 0 || v.Expected() != 4 {
		t.Fatalf("buffered=%d expected=%d", v.Buffered(), v.Expected())
	}
	if tile, _ := v.World().Tile(world.Position{X: 10, Y: 9}); tile.Passable || tile.Layers[0].Number != 44 {
		t.Fatalf("last delta not applied: %+v", tile)
	}

	// A duplicate of an applied frame is ignored.
	if applied, _ := v.Receive(&frames[2]); len(applied) != 0 {
		t.Fatalf("stale frame applied: %v", applied)
	}
}

func TestClientView_FullFrameDropsOlderBuffered(t *testing.T) {
	w := testWorld(t, 20, 20)
	st := NewConnState()
	f0 := Encode(st, w, Input{Tick: 1, Follow: world.Position{X: 5, Y: 5}, ViewW: 8, ViewH: 8})
	f1 := Encode(st, w, Input{Tick: 2, Follow: world.Position{X: 6, Y: 5}, ViewW: 8, ViewH: 8})
	st.RequestFull()
	f2 := Encode(st, w, Input{Tick: 3, Follow: world.Position{X: 7, Y: 5}, ViewW: 8, ViewH: 8})
	if !f2.Full {
		t.Fatalf("requested full frame not produced")
	}

	v := NewClientView()
	if _, err := v.Receive(&f1); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if v.Buffered() != 1 {
		t.Fatalf("delta before first full frame should be buffered")
	}
	applied, err := v.Receive(&f2)
	if err != nil {
		t.Fatalf("Receive full: %v", err)
	}
	if len(applied) != 1 || applied[0] != 2 || v.Buffered() != 0 {
		t.Fatalf("applied=%v buffered=%d", applied, v.Buffered())
	}
	if applied, _ := v.Receive(&f0); len(applied) != 0 {
		t.Fatalf("full frame older than current state applied")
	}
}

func TestEncode_StripAndChangedRegions(t *testing.T) {
	w := testWorld(t, 40, 40)
	st := NewConnState()
	Encode(st, w, Input{Tick: 1, Follow: world.Position{X: 20, Y: 20}, ViewW: 10, ViewH: 6})

	_ = w.SetTerrain(world.Position{X: 18, Y: 19}, false, world.TileType{Number: 3})
	f := Encode(st, w, Input{Tick: 2, Follow: world.Position{X: 22, Y: 20}, ViewW: 10, ViewH: 6, Changed: w.TakeChanged()})
	if f.Full {
		t.Fatalf("horizontal shift should be a delta")
	}
	if len(f.Regions) != 2 {
		t.Fatalf("regions=%+v", f.Regions)
	}
	strip := f.Regions[0]
	if strip.W != 2 || strip.H != 6 || strip.X != f.Viewport.X+f.Viewport.W-2 {
		t.Fatalf("unexpected strip %+v in %+v", strip, f.Viewport)
	}
	if cell := f.Regions[1]; cell.W != 1 || cell.H != 1 || cell.X != 18 || cell.Y != 19 {
		t.Fatalf("unexpected changed cell %+v", cell)
	}

	f = Encode(st, w, Input{Tick: 3, Follow: world.Position{X: 23, Y: 21}, ViewW: 10, ViewH: 6})
	if !f.Full {
		t.Fatalf("diagonal jump should produce a full frame")
	}
}

func TestEncode_ViewportClampedToMap(t *testing.T) {
	w := testWorld(t, 30, 20)
	f := Encode(NewConnState(), w, Input{Tick: 1, Follow: world.Position{X: 29, Y: 0}, ViewW: 10, ViewH: 8})
	if f.Viewport.X != 20 || f.Viewport.Y != 0 || f.Viewport.W != 10 || f.Viewport.H != 8 {
		t.Fatalf("viewport %+v", f.Viewport)
	}
	f = Encode(NewConnState(), w, Input{Tick: 1, Follow: world.Position{X: 5, Y: 5}, ViewW: 80, ViewH: 40})
	if f.Viewport.X != 0 || f.Viewport.Y != 0 || f.Viewport.W != 30 || f.Viewport.H != 20 {
		t.Fatalf("oversized viewport %+v", f.Viewport)
	}
}

func TestEncode_ObjectDefinitionsSentOnce(t *testing.T) {
	w := testWorld(t, 20, 20)
	sword := w.AddObject(&world.Object{Kind: world.ObjectWeapon, Name: "Sword", AttackDice: 1, AttackDiceSize: 4})
	c := &world.Creature{Name: "orc", Pos: world.Position{X: 5, Y: 5}, HP: 5, MaxHP: 5, Weapon: sword.ID}
	if err := w.AddCreature(c); err != nil {
		t.Fatalf("AddCreature: %v", err)
	}
	st := NewConnState()
	in := Input{Tick: 1, Follow: world.Position{X: 5, Y: 5}, ViewW: 8, ViewH: 8}

	f := Encode(st, w, in)
	if len(f.Objects) != 1 || f.Objects[0].ID != sword.ID {
		t.Fatalf("objects=%+v", f.Objects)
	}
	if len(f.Creatures) != 1 || f.Creatures[0].ID != c.ID {
		t.Fatalf("creatures=%+v", f.Creatures)
	}
	in.Tick = 2
	f = Encode(st, w, in)
	if len(f.Objects) != 0 {
		t.Fatalf("definition re-sent: %+v", f.Objects)
	}
	if len(f.Creatures) != 1 {
		t.Fatalf("visible creature missing from delta")
	}
	st.RequestFull()
	in.Tick = 3
	f = Encode(st, w, in)
	if !f.Full || len(f.Objects) != 1 {
		t.Fatalf("full resync should resend definitions: full=%v objects=%+v", f.Full, f.Objects)
	}
}

func TestEncode_EventsInView(t *testing.T) {
	w := testWorld(t, 30, 30)
	st := NewConnState()
	Encode(st, w, Input{Tick: 1, Follow: world.Position{X: 5, Y: 5}, ViewW: 10, ViewH: 10})

	w.Emit(world.Event{Tick: 2, Kind: world.EventStep, Pos: world.Position{X: 4, Y: 4}})
	w.Emit(world.Event{Tick: 2, Kind: world.EventStep, Pos: world.Position{X: 25, Y: 25}})
	f := Encode(st, w, Input{Tick: 2, Follow: world.Position{X: 5, Y: 5}, ViewW: 10, ViewH: 10})
	if len(f.Events) != 1 || f.Events[0].Pos != [2]int{4, 4} {
		t.Fatalf("events=%+v", f.Events)
	}
	f = Encode(st, w, Input{Tick: 3, Follow: world.Position{X: 5, Y: 5}, ViewW: 10, ViewH: 10})
	if len(f.Events) != 0 {
		t.Fatalf("old events repeated in delta: %+v", f.Events)
	}

	client := NewClientView()
	full := Encode(NewConnState(), w, Input{Tick: 3, Follow: world.Position{X: 5, Y: 5}, ViewW: 10, ViewH: 10})
	if _, err := client.Receive(&full); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got := client.World().Events(); len(got) != 1 {
		t.Fatalf("full frame should carry retained events in view, got %+v", got)
	}
}
