package models

import "time"

// SlotStatus is the playback status of a single display slot.
type SlotStatus string

const (
	SlotStatusIdle    SlotStatus = "idle"
	SlotStatusPlaying SlotStatus = "playing"
	SlotStatusPaused  SlotStatus = "paused"
	SlotStatusError   SlotStatus = "error"
)

// SlotInfo describes one content output within a display.
type SlotInfo struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Position string     `json:"position,omitempty"`
	Status   SlotStatus `json:"status"`
}

// DisplayRegistration is the agent's view of one successful registration
// handshake with Core. Owned exclusively by the registrar.
type DisplayRegistration struct {
	DisplayID    string      `json:"display_id"`
	HardwareID   string      `json:"hardware_id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	Slots        []*SlotInfo `json:"slots"`
	RegisteredAt time.Time   `json:"registered_at"`
}

// RegistrationRequest is the payload posted to the display registration
// endpoint.
type RegistrationRequest struct {
	HardwareID   string `json:"hardwareId"`
	Name         string `json:"name"`
	DeviceID     string `json:"deviceId,omitempty"`
	AgentVersion string `json:"agentVersion,omitempty"`
}

// RegistrationData is the data portion of a successful registration response.
type RegistrationData struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Slots []SlotInfo `json:"slots"`
}

// RegistrationResult is the normalized outcome handed back to the bootstrap.
type RegistrationResult struct {
	Success   bool
	DisplayID string
	Slots     []*SlotInfo
	Error     string
}
