package applications

import "fmt"

// History is the append-only status ledger of an application. Entries are
// kept in insertion order, which is also chronological order.
type History struct {
	events []StatusEvent
}

// NewHistory rebuilds a ledger from persisted events.
func NewHistory(events []StatusEvent) History {
	if len(events) == 0 {
		return History{}
	}
	out := make([]StatusEvent, len(events))
	copy(out, events)
	return History{events: out}
}

// Append adds ev to the end of the ledger.
func (h *History) Append(ev StatusEvent) {
	h.events = append(h.events, ev)
}

// Len returns the number of recorded events.
func (h History) Len() int {
	return len(h.events)
}

// Current returns the status of the most recent event.
func (h History) Current() (Status, bool) {
	if len(h.events) == 0 {
		return "", false
	}
	return h.events[len(h.events)-1].Status, true
}

// Last returns the most recent event.
func (h History) Last() (StatusEvent, bool) {
	if len(h.events) == 0 {
		return StatusEvent{}, false
	}
	return h.events[len(h.events)-1], true
}

// Events returns a copy of the ledger in chronological order. The copy can be
// iterated any number of times and mutating it does not affect the ledger.
func (h History) Events() []StatusEvent {
	out := make([]StatusEvent, len(h.events))
	copy(out, h.events)
	return out
}

func (h History) clone() History {
	return NewHistory(h.events)
}

// mustMatch panics when the ledger head disagrees with the record's current
// status. A mismatch is a programming error, never a user-facing condition.
func (h History) mustMatch(current Status) {
	head, ok := h.Current()
	if !ok {
		panic("applications: empty status history")
	}
	if head != current {
		panic(fmt.Sprintf("applications: status history head %q does not match current status %q", head, current))
	}
}
