package event

import "time"

type Event interface {
	Message() string
	Controller() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	message    string
	controller string
	occurredAt time.Time
}

func (b BaseEvent) Message() string { return b.message }
func (b BaseEvent) Controller() string { return b.controller }
func (b BaseEvent) OccurredAt() time.Time { return b.occurredAt }

func Text(controller, message string) BaseEvent {
	return BaseEvent{
		message:    message,
		controller: controller,
		occurredAt: time.Now(),
	}
}

type FinishReason string

const (
	FinishedOK      FinishReason = "ok"
	FinishedAborted FinishReason = "aborted"
)

type SequenceStartedEvent struct {
	BaseEvent
	SequenceID string
	WeaponSet  int
}

func SequenceStarted(be BaseEvent, sequenceID string, weaponSet int) SequenceStartedEvent {
	return SequenceStartedEvent{BaseEvent: be, SequenceID: sequenceID, WeaponSet: weaponSet}
}

type BlockedEvent struct {
	BaseEvent
	Blocker string
	Reason  string
}

func Blocked(be BaseEvent, blocker, reason string) BlockedEvent {
	return BlockedEvent{BaseEvent: be, Blocker: blocker, Reason: reason}
}

type CastFailedEvent struct {
	BaseEvent
	SequenceID string
	Attempt    int
	Reason     string
}

func CastFailed(be BaseEvent, sequenceID string, attempt int, reason string) CastFailedEvent {
	return CastFailedEvent{BaseEvent: be, SequenceID: sequenceID, Attempt: attempt, Reason: reason}
}

type BuffConfirmedEvent struct {
	BaseEvent
	SequenceID string
	Attempts   int
	Polls      int
}

func BuffConfirmed(be BaseEvent, sequenceID string, attempts, polls int) BuffConfirmedEvent {
	return BuffConfirmedEvent{BaseEvent: be, SequenceID: sequenceID, Attempts: attempts, Polls: polls}
}

type SequenceFinishedEvent struct {
	BaseEvent
	SequenceID string
	Reason     FinishReason
	Attempts   int
	Swapped    bool
	StartedAt  time.Time
}

func SequenceFinished(be BaseEvent, sequenceID string, reason FinishReason, attempts int, swapped bool, startedAt time.Time) SequenceFinishedEvent {
	return SequenceFinishedEvent{
		BaseEvent:  be,
		SequenceID: sequenceID,
		Reason:     reason,
		Attempts:   attempts,
		Swapped:    swapped,
		StartedAt:  startedAt,
	}
}
