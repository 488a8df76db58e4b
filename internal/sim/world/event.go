package world

import "sort"

type EventKind string

const (
	EventStep     EventKind = "STEP"
	EventCombat   EventKind = "COMBAT"
	EventDrink    EventKind = "DRINK"
	EventEquip    EventKind = "EQUIP"
	EventMoveItem EventKind = "MOVE_ITEM"
)

type Event struct {
	ID   int64     `json:"id"`
	Tick uint64    `json:"tick"`
	Kind EventKind `json:"kind"`

	// Pos is where the event happened; used for viewport filtering.
	Pos Position `json:"pos"`

	CreatureID int64    `json:"creature_id"`
	TargetID   int64    `json:"target_id,omitempty"`
	ObjectID   int64    `json:"object_id,omitempty"`
	From       Position `json:"from"`
	To         Position `json:"to"`
	Hit        bool     `json:"hit,omitempty"`
	Damage     int      `json:"damage,omitempty"`
	Drop       bool     `json:"drop,omitempty"`
}

// EventLog keeps events grouped by tick.
type EventLog struct {
	byTick map[uint64][]Event
}

func NewEventLog() *EventLog {
	return &EventLog{byTick: map[uint64][]Event{}}
}

func (l *EventLog) Add(e Event) {
	l.byTick[e.Tick] = append(l.byTick[e.Tick], e)
}

// At returns a copy of the events recorded for tick.
func (l *EventLog) At(tick uint64) []Event {
	return append([]Event(nil), l.byTick[tick]...)
}

// Since returns events with tick >= from, oldest first.
func (l *EventLog) Since(from uint64) []Event {
	ticks := make([]uint64, 0, len(l.byTick))
	for t := range l.byTick {
		if t >= from {
			ticks = append(ticks, t)
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	var out []Event
	for _, t := range ticks {
		out = append(out, l.byTick[t]...)
	}
	return out
}

func (l *EventLog) All() []Event { return l.Since(0) }

// PruneBefore drops every tick older than tick.
func (l *EventLog) PruneBefore(tick uint64) {
	for t := range l.byTick {
		if t < tick {
			delete(l.byTick, t)
		}
	}
}

func (l *EventLog) Len() int {
	n := 0
	for _, evs := range l.byTick {
		n += len(evs)
	}
	return n
}

// InBox filters events to those located inside r.
func InBox(events []Event, r Rect) []Event {
	var out []Event
	for _, e := range events {
		if r.Contains(e.Pos) {
			out = append(out, e)
		}
	}
	return out
}
