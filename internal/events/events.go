// Package events carries progress messages from worker tasks to the
// single status-rendering consumer.
package events

// Event is implemented by all progress message types.
type Event interface{ isEvent() }

// TurnStarted fires when a debater begins a turn.
type TurnStarted struct {
	TaskID     string
	RoundIndex int
	Speaker    string
	Stage      string
}

// JudgingStarted fires when a task's transcript is complete and the
// judge panel begins.
type JudgingStarted struct {
	TaskID string
}

// JudgeCompleted fires after each judge contributes a valid result.
type JudgeCompleted struct {
	TaskID   string
	JudgeID  string
	Done     int
	Expected int
}

// TaskFinished fires when a task leaves the executor, whatever the outcome.
type TaskFinished struct {
	TaskID string
	Status string // "completed", "failed", "skipped"
	Err    string
}

func (TurnStarted) isEvent()    {}
func (JudgingStarted) isEvent() {}
func (JudgeCompleted) isEvent() {}
func (TaskFinished) isEvent()   {}

// Bus is a buffered fan-in channel from many workers to one consumer.
// A nil Bus drops every publish, so components can emit unconditionally.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish sends an event, dropping it if the consumer has fallen
// behind. Progress display is best-effort; correctness never depends
// on event delivery.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	select {
	case b.ch <- e:
	default:
	}
}

// Events returns the receive side for the consumer.
func (b *Bus) Events() <-chan Event { return b.ch }

// Close ends the stream; the consumer's range loop terminates.
func (b *Bus) Close() { close(b.ch) }
