package outbox

import "time"

// Status mirrors outbox.status. Failed events are parked and no longer
// leased; an operator resets them to pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxAttempts is how many failed dispatches an event gets before it is parked.
const MaxAttempts = 5

// StatusAfterFailure is where an event goes once a dispatch fails, with
// attempts already counting that failure.
func StatusAfterFailure(attempts int) Status {
	if attempts >= MaxAttempts {
		return StatusFailed
	}
	return StatusPending
}

// Event is an order or payment change waiting to be published to Kafka.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	// LeasedBy is the relay holding the event until its lease runs out.
	LeasedBy string
	// Attempts counts earlier failed dispatches.
	Attempts int
}

// Key partitions messages by order, so one order's events stay in commit order.
func (e Event) Key() []byte {
	return []byte(e.AggregateID)
}
