package domain

import (
	"fmt"
	"time"
)

// DeploymentStatus is the lifecycle state of a Deployment aggregate.
type DeploymentStatus int

const (
	DeploymentPending DeploymentStatus = iota
	DeploymentBuilding
	DeploymentRunning
	DeploymentCompleted
	DeploymentFailed
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentPending:
		return "PENDING"
	case DeploymentBuilding:
		return "BUILDING"
	case DeploymentRunning:
		return "RUNNING"
	case DeploymentCompleted:
		return "COMPLETED"
	case DeploymentFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DeploymentEvent is a domain event emitted by a Deployment transition.
type DeploymentEvent struct {
	AggregateID string
	Type        string
	OccurredAt  time.Time
	Fingerprint *Fingerprint // set on BuildCompleted
	Message     string       // set on Failed
}

// InvalidTransitionError reports an attempted illegal Deployment state
// transition.
type InvalidTransitionError struct {
	From DeploymentStatus
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("deployment: invalid transition from %s to %s", e.From, e.To)
}

// Deployment is the aggregate root tracking one deployment's lifecycle.
// It is exclusively owned: every transition method takes the receiver by
// value and returns a new Deployment plus the event it emitted. Callers
// must treat the receiver as consumed after the call — Go has no move
// semantics to enforce this, so it is a convention, not a compile-time
// guarantee.
type Deployment struct {
	SessionID    SessionId
	Status       DeploymentStatus
	Fingerprint  *Fingerprint
	ErrorMessage string
	Events       []DeploymentEvent
}

// NewDeployment creates a Deployment in the PENDING state with no events.
func NewDeployment(sessionID SessionId) Deployment {
	return Deployment{SessionID: sessionID, Status: DeploymentPending}
}

func (d Deployment) withEvent(evt DeploymentEvent) Deployment {
	evt.AggregateID = d.SessionID.String()
	evt.OccurredAt = time.Now().UTC()
	next := d
	next.Events = append(append([]DeploymentEvent{}, d.Events...), evt)
	return next
}

// Start transitions PENDING -> BUILDING, emitting "Started".
func (d Deployment) Start() (Deployment, error) {
	if d.Status != DeploymentPending {
		return d, &InvalidTransitionError{From: d.Status, To: "BUILDING"}
	}
	next := d
	next.Status = DeploymentBuilding
	return next.withEvent(DeploymentEvent{Type: "Started"}), nil
}

// CompleteBuild transitions BUILDING -> RUNNING, emitting "BuildCompleted".
func (d Deployment) CompleteBuild(fp Fingerprint) (Deployment, error) {
	if d.Status != DeploymentBuilding {
		return d, &InvalidTransitionError{From: d.Status, To: "RUNNING"}
	}
	next := d
	next.Status = DeploymentRunning
	next.Fingerprint = &fp
	return next.withEvent(DeploymentEvent{Type: "BuildCompleted", Fingerprint: &fp}), nil
}

// Complete transitions RUNNING -> COMPLETED, emitting "Completed".
func (d Deployment) Complete() (Deployment, error) {
	if d.Status != DeploymentRunning {
		return d, &InvalidTransitionError{From: d.Status, To: "COMPLETED"}
	}
	next := d
	next.Status = DeploymentCompleted
	return next.withEvent(DeploymentEvent{Type: "Completed"}), nil
}

// Fail transitions any state -> FAILED, emitting "Failed". Unlike the
// other transitions this one is never illegal: a deployment may fail
// from any point in its lifecycle.
func (d Deployment) Fail(message string) Deployment {
	next := d
	next.Status = DeploymentFailed
	next.ErrorMessage = message
	return next.withEvent(DeploymentEvent{Type: "Failed", Message: message})
}
