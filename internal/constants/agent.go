package constants

import "time"

// AgentVersion is reported to Core during registration.
const AgentVersion = "1.0.0"

// Default timing and connection parameters, overridable via config/env.
const (
	DefaultHeartbeatInterval    = 5 * time.Second
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultConnectionTimeout    = 10 * time.Second
	DefaultActionTimeout        = 60 * time.Second
	DefaultActionRetention      = 10 * time.Minute
	DefaultLogLevel             = "info"
)

// Core HTTP endpoint paths, relative to the configured server URL.
const (
	RegisterEndpoint       = "/api/digital-signage/displays/register"
	HeartbeatEndpoint      = "/api/digital-signage/agent/heartbeat"
	ActionStatusEndpoint   = "/api/digital-signage/actions/%s/status"
	PendingActionsEndpoint = "/api/digital-signage/agent/pending-actions"
)

// DisplayIDHeader is attached to every HTTP request once the display is known.
const DisplayIDHeader = "X-Display-ID"

// Socket protocol event names.
const (
	EventAgentConnected = "agent:connected"
	EventAgentHeartbeat = "agent:heartbeat"
	EventActionStatus   = "action:status"
	EventActionExecute  = "action:execute"
	EventActionPause    = "action:pause"
	EventActionResume   = "action:resume"
	EventActionStop     = "action:stop"
)
