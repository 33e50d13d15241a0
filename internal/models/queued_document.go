package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentState string

const (
	StateQueued    DocumentState = "queued"
	StateUploading DocumentState = "uploading"
	StateAnalyzing DocumentState = "analyzing"
	StateReady     DocumentState = "ready"
	StateError     DocumentState = "error"
)

type QueueEvent string

const (
	EventAdmit     QueueEvent = "admit"
	EventUploaded  QueueEvent = "uploaded"
	EventAnalyzed  QueueEvent = "analyzed"
	EventFailed    QueueEvent = "failed"
	EventConfirmed QueueEvent = "confirmed"
	EventDiscarded QueueEvent = "discarded"
)

// transitions is the exhaustive state table for a queued document.
// Confirmed and discarded have no row: both remove the document from the
// queue, so there is no resulting state to record.
var transitions = map[DocumentState]map[QueueEvent]DocumentState{
	StateQueued: {
		EventAdmit: StateUploading,
	},
	StateUploading: {
		EventUploaded: StateAnalyzing,
		EventFailed:   StateError,
	},
	StateAnalyzing: {
		EventAnalyzed: StateReady,
		EventFailed:   StateError,
	},
}

// Transition applies event to state. The second return value is false when
// the event is not valid in the current state; callers must treat that as a
// programming error, not silently ignore it.
func Transition(state DocumentState, event QueueEvent) (DocumentState, bool) {
	next, ok := transitions[state][event]
	return next, ok
}

// InFlight reports whether the state occupies one of the bounded
// upload+analysis slots.
func (s DocumentState) InFlight() bool {
	return s == StateUploading || s == StateAnalyzing
}

// Removable reports whether the user may take the document out of the queue
// in this state. In-flight documents may also be discarded; the eventual
// completion of their remote calls is dropped because the id is no longer
// tracked.
func (s DocumentState) Removable(event QueueEvent) bool {
	switch event {
	case EventDiscarded:
		return true
	case EventConfirmed:
		return s == StateReady
	}
	return false
}

// QueuedDocument is a transient, process-local entry in the intake queue.
// It is owned exclusively by the intake service and mutated only through
// Transition.
type QueuedDocument struct {
	ID           uuid.UUID
	FileName     string
	MimeType     string
	Data         []byte
	State        DocumentState
	StorageRef   string
	Extraction   *Extraction
	ErrorMessage string
	// DuplicateOf records the conflicting persisted record when confirmation
	// found a duplicate. Not an error and not a success: a distinct outcome.
	DuplicateOf *uuid.UUID
	EnqueuedAt  time.Time
}
