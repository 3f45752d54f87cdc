package analysis

import "time"

// EventKind tags a progress event.
type EventKind string

const (
	EventStatus        EventKind = "status"
	EventRowStart      EventKind = "row_start"
	EventRowRetry      EventKind = "row_retry"
	EventRowProcessing EventKind = "row_processing"
	EventRowComplete   EventKind = "row_complete"
	EventRowError      EventKind = "row_error"
	EventComplete      EventKind = "complete"
)

// Terminal reports whether the kind resolves a row for good.
func (k EventKind) Terminal() bool {
	return k == EventRowComplete || k == EventRowError
}

// Event is one lifecycle notification. Only the fields relevant to Kind are set:
// status/complete carry Total and Message, row_start carries ID, row_retry
// carries ID, Attempt and MaxAttempts, and the row resolutions carry Outcome.
type Event struct {
	Kind        EventKind `json:"type"`
	ID          string    `json:"id,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"maxAttempts,omitempty"`
	Total       int       `json:"total,omitempty"`
	Message     string    `json:"message,omitempty"`
	Outcome     *Outcome  `json:"data,omitempty"`
	Time        time.Time `json:"time"`
}

// emitter delivers events to the caller's channel. Sends block until the
// consumer receives, so events for one row arrive in the order they were
// produced. Consumers must drain the channel until it is closed.
type emitter struct {
	ch  chan<- Event
	now func() time.Time
}

func (e emitter) emit(ev Event) {
	if e.ch == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.ch <- ev
}

func (e emitter) rowStart(id string) {
	e.emit(Event{Kind: EventRowStart, ID: id})
}

func (e emitter) rowRetry(id string, attempt, maxAttempts int) {
	e.emit(Event{Kind: EventRowRetry, ID: id, Attempt: attempt, MaxAttempts: maxAttempts})
}

func (e emitter) rowResolved(kind EventKind, o Outcome) {
	out := o
	e.emit(Event{Kind: kind, ID: o.ID, Outcome: &out})
}
