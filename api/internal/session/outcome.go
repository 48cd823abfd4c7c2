package session

import (
	"time"

	"github.com/google/uuid"

	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/task"
)

type Status string

const (
	Idle     Status = "idle"
	InFlight Status = "in_flight"
	Success  Status = "success"
	Failure  Status = "failure"
)

// Outcome is the single result cell of a session. Exactly one Status holds.
type Outcome struct {
	Status    Status
	Kind      task.Kind
	RequestID uuid.UUID
	// Data is the service's data object, untouched. Set on Success only.
	Data      map[string]any
	Directive predict.Directive
	// Err is the cause of a Failure: *predict.ValidationError, *predict.ServiceError
	// or *predict.TransportError.
	Err     error
	Message string
}

// Ticket tags one in-flight request with the task it was issued for.
type Ticket struct {
	ID       uuid.UUID
	Kind     task.Kind
	IssuedAt time.Time
}

func idle() Outcome { return Outcome{Status: Idle} }

func failure(k task.Kind, id uuid.UUID, err error) Outcome {
	msg := predict.UserMessage(err)
	return Outcome{
		Status:    Failure,
		Kind:      k,
		RequestID: id,
		Err:       err,
		Message:   msg,
		Directive: predict.ErrorDirective(msg),
	}
}
