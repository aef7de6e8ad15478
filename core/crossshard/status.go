package crossshard

// Status is the state of a cross-shard transaction. Transitions only move
// forward in priority order; the terminal statuses never transition again.
type Status string

const (
	StatusInitialized        Status = "initialized"
	StatusSourceCommitted    Status = "source_committed"
	StatusTransmitted        Status = "transmitted"
	StatusTargetReceived     Status = "target_received"
	StatusTargetCommitted    Status = "target_committed"
	StatusSourceAcknowledged Status = "source_acknowledged"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusTimedOut           Status = "timed_out"
	StatusCancelled          Status = "cancelled"
)

// statusPriority is the total order used to resolve reconciliation: a
// locally-held status is only overwritten by a reported one of strictly
// higher priority. This table is a manual invariant; keep it in sync with
// the constants above and the exhaustive test.
var statusPriority = map[Status]int{
	StatusInitialized:        1,
	StatusSourceCommitted:    2,
	StatusTransmitted:        3,
	StatusTargetReceived:     4,
	StatusTargetCommitted:    5,
	StatusSourceAcknowledged: 6,
	StatusCompleted:          7,
	StatusFailed:             8,
	StatusTimedOut:           9,
	StatusCancelled:          10,
}

// Priority returns the position of s in the total order. Unknown statuses
// rank lowest so a corrupt report can never overwrite real state.
func (s Status) Priority() int {
	return statusPriority[s]
}

// IsTerminal reports whether no further transitions may occur from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := statusPriority[s]
	return ok
}
