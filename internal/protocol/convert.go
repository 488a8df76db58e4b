package protocol

import "roguecloud.io/internal/sim/world"

func pos(p world.Position) [2]int { return [2]int{p.X, p.Y} }

func fromPos(p [2]int) world.Position { return world.Position{X: p[0], Y: p[1]} }

func ToAction(b ActionBody) world.Action {
	a := world.Action{Kind: world.ActionKind(b.Kind), TargetID: b.TargetID, ObjectID: b.ObjectID}
	if b.Dest != nil {
		a.Dest = fromPos(*b.Dest)
	}
	return a
}

func FromAction(a world.Action) ActionBody {
	b := ActionBody{Kind: string(a.Kind), TargetID: a.TargetID, ObjectID: a.ObjectID}
	if a.Kind == world.ActionStep {
		d := pos(a.Dest)
		b.Dest = &d
	}
	return b
}

func FromEffect(e world.Effect) EffectBody {
	return EffectBody{Kind: string(e.Kind), Magnitude: e.Magnitude, RemainingTurns: e.RemainingTurns}
}

func FromOutcome(o world.Outcome) OutcomeBody {
	out := OutcomeBody{
		Kind:       string(o.Kind),
		Performed:  o.Performed,
		FailReason: o.FailReason,
		Position:   pos(o.Pos),
		Damage:     o.Damage,
		Hit:        o.Hit,
		TargetID:   o.TargetID,
		ObjectID:   o.ObjectID,
	}
	if o.Effect != nil {
		e := FromEffect(*o.Effect)
		out.Effect = &e
	}
	return out
}

func FromCreature(c world.CreatureView) CreatureView {
	return CreatureView{
		ID:       c.ID,
		Name:     c.Name,
		Player:   c.Player,
		TileType: c.TileType,
		Pos:      pos(c.Pos),
		HP:       c.HP,
		MaxHP:    c.MaxHP,
		Level:    c.Level,
		Weapon:   c.Weapon,
		Armour:   c.Armour,
	}
}

func FromObject(o *world.Object) ObjectDef {
	d := ObjectDef{
		ID:             o.ID,
		Kind:           string(o.Kind),
		Name:           o.Name,
		TileType:       o.TileType,
		AttackDice:     o.AttackDice,
		AttackDiceSize: o.AttackDiceSize,
		AttackPlus:     o.AttackPlus,
		HitRating:      o.HitRating,
		Slot:           o.Slot,
		Defense:        o.Defense,
	}
	if o.Effect != nil {
		e := FromEffect(*o.Effect)
		d.Effect = &e
	}
	return d
}

func FromGround(g *world.GroundObject) GroundItem {
	return GroundItem{ID: g.ID, ObjectID: g.ObjectID, Pos: pos(g.Pos)}
}

func FromEvent(e world.Event) EventView {
	return EventView{
		ID:         e.ID,
		Tick:       e.Tick,
		Kind:       string(e.Kind),
		Pos:        pos(e.Pos),
		CreatureID: e.CreatureID,
		TargetID:   e.TargetID,
		ObjectID:   e.ObjectID,
		From:       pos(e.From),
		To:         pos(e.To),
		Hit:        e.Hit,
		Damage:     e.Damage,
		Drop:       e.Drop,
	}
}

func ToPosition(p [2]int) world.Position { return fromPos(p) }
