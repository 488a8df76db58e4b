package rules

import (
	"math/rand"

	"roguecloud.io/internal/sim/world"
)

// Resolver applies one action to the world. It is called only from the round goroutine and must not block.
type Resolver interface {
	Resolve(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome
}

// Basic is the default combat and inventory rule set.
type Basic struct {
	rng *rand.Rand
}

func NewBasic(seed int64) *Basic {
	return &Basic{rng: rand.New(rand.NewSource(seed))}
}

func (b *Basic) Resolve(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	if actor == nil || actor.Dead() {
		return world.Failed(a.Kind, world.FailDead)
	}
	switch a.Kind {
	case world.ActionNull:
		return world.Outcome{Kind: world.ActionNull, Performed: true, Pos: actor.Pos}
	case world.ActionStep:
		return b.step(a, actor, w, tick)
	case world.ActionAttack:
		return b.attack(a, actor, w, tick)
	case world.ActionEquip:
		return b.equip(a, actor, w, tick)
	case world.ActionDrink:
		return b.drink(a, actor, w, tick)
	case world.ActionPickUp:
		return b.pickUp(a, actor, w, tick)
	case world.ActionDrop:
		return b.drop(a, actor, w, tick)
	default:
		return world.Failed(a.Kind, world.FailInvalid)
	}
}

func (b *Basic) step(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	if !world.Adjacent(actor.Pos, a.Dest) {
		return world.Failed(a.Kind, world.FailNotAdjacent)
	}
	t := w.Tile(a.Dest)
	if t == nil || !t.Passable {
		return world.Failed(a.Kind, world.FailBlocked)
	}
	if t.Door != nil && !t.Door.Open {
		t.Door.Open = true
		w.MarkChanged(a.Dest)
		return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos}
	}
	from := actor.Pos
	if err := w.MoveCreature(actor.ID, a.Dest); err != nil {
		return world.Failed(a.Kind, world.FailBlocked)
	}
	w.Emit(world.Event{Tick: tick, Kind: world.EventStep, Pos: a.Dest, CreatureID: actor.ID, From: from, To: a.Dest})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: a.Dest}
}

func (b *Basic) attack(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	target := w.Creature(a.TargetID)
	if target == nil || target.Dead() || target.ID == actor.ID {
		return world.Failed(a.Kind, world.FailNoTarget)
	}
	if !world.Adjacent(actor.Pos, target.Pos) {
		return world.Failed(a.Kind, world.FailNotAdjacent)
	}
	hit, damage := b.combat(actor, target, w)
	target.HP -= damage
	w.MarkChanged(target.Pos)
	w.Emit(world.Event{
		Tick:       tick,
		Kind:       world.EventCombat,
		Pos:        target.Pos,
		CreatureID: actor.ID,
		TargetID:   target.ID,
		From:       actor.Pos,
		To:         target.Pos,
		Hit:        hit,
		Damage:     damage,
	})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos, Hit: hit, Damage: damage, TargetID: target.ID}
}

// combat rolls weapon dice against the defender's total armour.
func (b *Basic) combat(attacker, defender *world.Creature, w *world.World) (bool, int) {
	weapon := w.Object(attacker.Weapon)
	dice, size, plus, rating := 1, 2, 0, 10
	if weapon != nil {
		dice, size, plus, rating = weapon.AttackDice, weapon.AttackDiceSize, weapon.AttackPlus, weapon.HitRating
	}
	damage := plus
	for i := 0; i < dice; i++ {
		if size > 0 {
			damage += b.rng.Intn(size)
		}
	}

	reduction := 1.0
	for _, e := range defender.Effects {
		if e.Kind == world.EffectDamageReduction {
			reduction *= 1 - float64(e.Magnitude)/100
		}
	}
	damage = int(float64(damage) * reduction)

	defense := 0
	for _, id := range defender.Armour {
		if o := w.Object(id); o != nil {
			defense += o.Defense
		}
	}
	if defense > 0 && b.rng.Float64() > float64(rating)/float64(defense) {
		return false, 0
	}
	if damage < 0 {
		damage = 0
	}
	return true, damage
}

func (b *Basic) equip(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	item, ok := actor.InventoryItem(a.ObjectID)
	if !ok {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	obj := w.Object(item.ObjectID)
	if obj == nil {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	switch obj.Kind {
	case world.ObjectWeapon:
		actor.RemoveInventory(item.ID)
		if actor.Weapon != 0 {
			actor.Inventory = append(actor.Inventory, world.Owned{ID: w.NextID(), ObjectID: actor.Weapon})
		}
		actor.Weapon = obj.ID
	case world.ObjectArmour:
		actor.RemoveInventory(item.ID)
		for _, id := range append([]int64(nil), actor.Armour...) {
			if worn := w.Object(id); worn != nil && worn.Slot == obj.Slot {
				actor.RemoveArmour(id)
				actor.Inventory = append(actor.Inventory, world.Owned{ID: w.NextID(), ObjectID: id})
			}
		}
		actor.Armour = append(actor.Armour, obj.ID)
	default:
		return world.Failed(a.Kind, world.FailWrongKind)
	}
	w.MarkChanged(actor.Pos)
	w.Emit(world.Event{Tick: tick, Kind: world.EventEquip, Pos: actor.Pos, CreatureID: actor.ID, ObjectID: obj.ID})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos, ObjectID: obj.ID}
}

func (b *Basic) drink(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	item, ok := actor.InventoryItem(a.ObjectID)
	if !ok {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	obj := w.Object(item.ObjectID)
	if obj == nil || obj.Kind != world.ObjectDrinkable || obj.Effect == nil {
		return world.Failed(a.Kind, world.FailWrongKind)
	}
	actor.RemoveInventory(item.ID)
	eff := *obj.Effect
	actor.Effects = append(actor.Effects, eff)
	w.Emit(world.Event{Tick: tick, Kind: world.EventDrink, Pos: actor.Pos, CreatureID: actor.ID, ObjectID: obj.ID})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos, ObjectID: obj.ID, Effect: &eff}
}

func (b *Basic) pickUp(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	g := w.Ground(a.ObjectID)
	if g == nil {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	if g.Pos != actor.Pos && !world.Adjacent(actor.Pos, g.Pos) {
		return world.Failed(a.Kind, world.FailNotAdjacent)
	}
	pos := g.Pos
	objectID, err := w.TakeGround(g.ID)
	if err != nil {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	owned := world.Owned{ID: w.NextID(), ObjectID: objectID}
	actor.Inventory = append(actor.Inventory, owned)
	w.Emit(world.Event{Tick: tick, Kind: world.EventMoveItem, Pos: pos, CreatureID: actor.ID, ObjectID: objectID})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos, ObjectID: owned.ID}
}

func (b *Basic) drop(a world.Action, actor *world.Creature, w *world.World, tick uint64) world.Outcome {
	item, ok := actor.InventoryItem(a.ObjectID)
	if !ok {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	if _, err := w.PlaceObject(item.ObjectID, actor.Pos); err != nil {
		return world.Failed(a.Kind, world.FailNoObject)
	}
	actor.RemoveInventory(item.ID)
	w.Emit(world.Event{Tick: tick, Kind: world.EventMoveItem, Pos: actor.Pos, CreatureID: actor.ID, ObjectID: item.ObjectID, Drop: true})
	return world.Outcome{Kind: a.Kind, Performed: true, Pos: actor.Pos, ObjectID: item.ObjectID}
}
