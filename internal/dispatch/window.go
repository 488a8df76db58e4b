package dispatch

// Window remembers recently seen message ids. Once pruning has happened, ids at or below the
// floor are treated as seen. Not safe for concurrent use.
type Window struct {
	size     int64
	seen     map[int64]struct{}
	high     int64
	hasHigh  bool
	floor    int64
	hasFloor bool
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: int64(size), seen: map[int64]struct{}{}}
}

func (w *Window) Seen(id int64) bool {
	if w.hasFloor && id <= w.floor {
		return true
	}
	_, ok := w.seen[id]
	return ok
}

// Mark records id and reports whether it was new.
func (w *Window) Mark(id int64) bool {
	if w.Seen(id) {
		return false
	}
	w.seen[id] = struct{}{}
	if !w.hasHigh || id > w.high {
		w.high, w.hasHigh = id, true
	}
	if int64(len(w.seen)) > 2*w.size {
		w.prune()
	}
	return true
}

// prune drops ids more than size below the highest id seen.
func (w *Window) prune() {
	floor := w.high - w.size
	if w.hasFloor && floor <= w.floor {
		return
	}
	for id := range w.seen {
		if id <= floor {
			delete(w.seen, id)
		}
	}
	w.floor, w.hasFloor = floor, true
}

func (w *Window) Len() int { return len(w.seen) }

func (w *Window) Reset() {
	w.seen = map[int64]struct{}{}
	w.high, w.hasHigh = 0, false
	w.floor, w.hasFloor = 0, false
}
