package models

// AgentState is the lifecycle state of the agent bootstrap.
type AgentState string

const (
	AgentStateStopped      AgentState = "stopped"
	AgentStateStarting     AgentState = "starting"
	AgentStateRegistering  AgentState = "registering"
	AgentStateConnecting   AgentState = "connecting"
	AgentStateRunning      AgentState = "running"
	AgentStateReconnecting AgentState = "reconnecting"
	AgentStateError        AgentState = "error"
)
