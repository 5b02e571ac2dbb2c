package models

import "time"

// ActionStatus is the lifecycle status of one remotely-commanded playback
// task. Terminal statuses are absorbing: no further transitions are accepted
// once an action completes, stops, or fails.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusPaused    ActionStatus = "paused"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusStopped   ActionStatus = "stopped"
	ActionStatusFailed    ActionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusStopped || s == ActionStatusFailed
}

// ActionState tracks one action execution from arrival to its terminal
// status. Entries are retained after termination for late status queries.
type ActionState struct {
	ExecutionID  string       `json:"actionExecutionId"`
	SlotID       string       `json:"displaySlotId"`
	Status       ActionStatus `json:"status"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      *time.Time   `json:"endedAt,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// ActionCommand is the inbound action:execute payload from Core.
type ActionCommand struct {
	ActionExecutionID string       `json:"actionExecutionId"`
	DisplaySlotID     string       `json:"displaySlotId"`
	MediaSourceID     string       `json:"mediaSourceId"`
	MediaSource       MediaPayload `json:"mediaSource"`
	ScheduleID        string       `json:"scheduleId,omitempty"`
}

// ActionControl is the inbound payload of action:pause/resume/stop.
type ActionControl struct {
	ActionExecutionID string `json:"actionExecutionId"`
}

// ActionStatusUpdate is the outbound action:status payload reported back to
// Core on every action transition.
type ActionStatusUpdate struct {
	ActionExecutionID string       `json:"actionExecutionId"`
	Status            ActionStatus `json:"status"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
}
