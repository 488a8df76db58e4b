package world

type ActionKind string

const (
	ActionNull   ActionKind = "NULL"
	ActionStep   ActionKind = "STEP"
	ActionAttack ActionKind = "ATTACK"
	ActionEquip  ActionKind = "EQUIP"
	ActionDrink  ActionKind = "DRINK"
	ActionPickUp ActionKind = "PICK_UP"
	ActionDrop   ActionKind = "DROP"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionNull, ActionStep, ActionAttack, ActionEquip, ActionDrink, ActionPickUp, ActionDrop:
		return true
	}
	return false
}

// Action is an intent produced by a player connection or a decision function.
type Action struct {
	Kind     ActionKind
	Dest     Position
	TargetID int64
	ObjectID int64
}

var NullAction = Action{Kind: ActionNull}

// Failure reasons reported in outcomes.
const (
	FailBlocked     = "BLOCKED"
	FailNotAdjacent = "NOT_ADJACENT"
	FailNoTarget    = "NO_TARGET"
	FailNoObject    = "NO_OBJECT"
	FailWrongKind   = "WRONG_KIND"
	FailDead        = "DEAD"
	FailInvalid     = "INVALID"
	FailRoundOver   = "ROUND_OVER"
	FailStale       = "STALE"
)

type Outcome struct {
	Kind       ActionKind
	Performed  bool
	FailReason string

	Pos      Position
	Damage   int
	Hit      bool
	TargetID int64
	ObjectID int64
	Effect   *Effect
}

func Failed(kind ActionKind, reason string) Outcome {
	return Outcome{Kind: kind, FailReason: reason}
}
