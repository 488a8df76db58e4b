package main

import (
	"testing"

	"roguecloud.io/internal/protocol"
	"roguecloud.io/internal/sim/rules"
	"roguecloud.io/internal/sim/world"
	"roguecloud.io/internal/viewsync"
)

type room struct {
	t *testing.T
	w *world.World
}

// newRoom is a 5x5 open room with the player (id 1) in the middle.
func newRoom(t *testing.T) *room {
	t.Helper()
	w := world.New(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			_ = w.SetTerrain(world.Position{X: x, Y: y}, true, world.TileType{Number: 1})
		}
	}
	if err := w.AddCreature(&world.Creature{ID: 1, Player: true, Pos: world.Position{X: 2, Y: 2}, HP: 10, MaxHP: 10}); err != nil {
		t.Fatalf("add player: %v", err)
	}
	return &room{t: t, w: w}
}

func (r *room) monster(id int64, x, y int) {
	r.t.Helper()
	if err := r.w.AddCreature(&world.Creature{ID: id, Pos: world.Position{X: x, Y: y}, HP: 5, MaxHP: 5}); err != nil {
		r.t.Fatalf("add monster: %v", err)
	}
}

// client encodes one full frame and applies it to a fresh client view.
func (r *room) client(self *protocol.SelfView, refs ...int64) *viewsync.ClientWorld {
	r.t.Helper()
	f := viewsync.Encode(viewsync.NewConnState(), r.w, viewsync.Input{
		RoundID: 1,
		Tick:    1,
		Follow:  world.Position{X: 2, Y: 2},
		ViewW:   5,
		ViewH:   5,
		Self:    self,
		Refs:    refs,
	})
	v := viewsync.NewClientView()
	if _, err := v.Receive(&f); err != nil {
		r.t.Fatalf("receive: %v", err)
	}
	return v.World()
}

func healthy() *protocol.SelfView { return &protocol.SelfView{CreatureID: 1, HP: 10, MaxHP: 10} }

func TestBrainAttacksAdjacentMonster(t *testing.T) {
	r := newRoom(t)
	r.monster(100, 3, 3)
	a := newBrain(1).decide(r.client(healthy()))
	if a.Kind != world.ActionAttack || a.TargetID != 100 {
		t.Fatalf("got %+v", a)
	}
}

func TestBrainDrinksWhenHurt(t *testing.T) {
	r := newRoom(t)
	r.monster(100, 3, 3)
	potion := r.w.AddObject(&world.Object{Kind: world.ObjectDrinkable, Name: "Potion"})
	self := &protocol.SelfView{CreatureID: 1, HP: 2, MaxHP: 10, Inventory: []protocol.InventoryItem{{ID: 50, ObjectID: potion.ID}}}
	a := newBrain(1).decide(r.client(self, potion.ID))
	if a.Kind != world.ActionDrink || a.ObjectID != 50 {
		t.Fatalf("got %+v", a)
	}
}

func TestBrainPicksUpLootBeforeChasing(t *testing.T) {
	r := newRoom(t)
	r.monster(100, 0, 0)
	sword := r.w.AddObject(&world.Object{Kind: world.ObjectWeapon, Name: "Sword"})
	g, err := r.w.PlaceObject(sword.ID, world.Position{X: 2, Y: 3})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if a := newBrain(1).decide(r.client(healthy())); a.Kind != world.ActionPickUp || a.ObjectID != g.ID {
		t.Fatalf("expected pick up of %d, got %+v", g.ID, a)
	}

	if _, err := r.w.TakeGround(g.ID); err != nil {
		t.Fatalf("take: %v", err)
	}
	a := newBrain(1).decide(r.client(healthy()))
	if a.Kind != world.ActionStep || a.Dest != (world.Position{X: 1, Y: 1}) {
		t.Fatalf("expected step toward monster, got %+v", a)
	}
}

func TestBrainDeadOrObserverWaits(t *testing.T) {
	r := newRoom(t)
	if a := newBrain(1).decide(r.client(&protocol.SelfView{CreatureID: 1, Dead: true})); a.Kind != world.ActionNull {
		t.Fatalf("dead: got %+v", a)
	}
	if a := newBrain(1).decide(r.client(&protocol.SelfView{Observer: true})); a.Kind != world.ActionNull {
		t.Fatalf("observer: got %+v", a)
	}
}

func TestBrainStepsThroughClosedDoor(t *testing.T) {
	w := world.New(3, 1)
	_ = w.SetTerrain(world.Position{X: 0}, true, world.TileType{Number: 1})
	_ = w.SetTerrain(world.Position{X: 1}, true, world.TileType{Number: rules.TileDoor, Rotation: 1}, world.TileType{Number: 1})
	_ = w.SetDoor(world.Position{X: 1}, false)
	_ = w.SetTerrain(world.Position{X: 2}, true, world.TileType{Number: 1})
	if err := w.AddCreature(&world.Creature{ID: 1, Player: true, HP: 10, MaxHP: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r := &room{t: t, w: w}
	a := newBrain(1).decide(r.client(healthy()))
	if a.Kind != world.ActionStep || a.Dest != (world.Position{X: 1}) {
		t.Fatalf("got %+v", a)
	}
}
