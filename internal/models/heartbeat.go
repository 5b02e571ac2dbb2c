package models

// SlotStatusEntry is one per-slot line of a heartbeat snapshot.
type SlotStatusEntry struct {
	SlotID string     `json:"slotId"`
	Status SlotStatus `json:"status"`
}

// SystemStats is an optional host health snapshot attached to heartbeats.
type SystemStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMb"`
}

// HeartbeatPayload is a point-in-time liveness snapshot sent to Core. Built
// fresh on every tick, never persisted.
type HeartbeatPayload struct {
	DisplayID             string            `json:"displayId"`
	HardwareID            string            `json:"hardwareId"`
	Timestamp             string            `json:"timestamp"`
	SlotStatuses          []SlotStatusEntry `json:"slotStatuses"`
	PlayerAlive           bool              `json:"playerAlive"`
	LastActionExecutionID string            `json:"lastActionExecutionId,omitempty"`
	System                *SystemStats      `json:"system,omitempty"`
}
