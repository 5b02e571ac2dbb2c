package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/models"
	"github.com/o4o-platform/signage-agent/internal/utils"
	"github.com/o4o-platform/signage-agent/pkg/corehttp"
	"github.com/o4o-platform/signage-agent/pkg/socket"
)

// BootstrapService is the top-level orchestrator. It owns the agent
// lifecycle state machine and wires the components' events together:
// inbound socket actions flow into the action handler, action status updates
// flow back out over the socket, player health feeds the heartbeat, and
// socket disconnects drive the reconnect loop.
type BootstrapService struct {
	config       *utils.Config
	logger       zerolog.Logger
	registrar    RegistrarInterface
	player       LocalPlayerInterface
	actions      ActionHandlerInterface
	heartbeat    HeartbeatInterface
	socketClient socket.CoreSocketClient
	httpClient   corehttp.CoreHTTPClient

	mu            sync.Mutex
	state         models.AgentState
	ctx           context.Context
	cancel        context.CancelFunc
	onStateChange func(state models.AgentState)
	onError       func(err error)
}

// NewBootstrapService wires the agent components together. Event listeners
// are registered here; the agent does nothing until Start.
func NewBootstrapService(
	config *utils.Config,
	registrar RegistrarInterface,
	player LocalPlayerInterface,
	actions ActionHandlerInterface,
	heartbeat HeartbeatInterface,
	socketClient socket.CoreSocketClient,
	httpClient corehttp.CoreHTTPClient,
	logger zerolog.Logger,
) *BootstrapService {
	b := &BootstrapService{
		config:       config,
		logger:       logger,
		registrar:    registrar,
		player:       player,
		actions:      actions,
		heartbeat:    heartbeat,
		socketClient: socketClient,
		httpClient:   httpClient,
		state:        models.AgentStateStopped,
	}

	socketClient.SetActionListener(b)
	socketClient.SetConnectionListener(b)
	player.SetObserver(b)
	actions.SetStatusCallback(b.handleActionStatus)

	return b
}

// SetStateChangeCallback registers a host-process listener for lifecycle
// transitions.
func (b *BootstrapService) SetStateChangeCallback(fn func(state models.AgentState)) {
	b.onStateChange = fn
}

// SetErrorCallback registers a host-process listener for unrecoverable
// errors.
func (b *BootstrapService) SetErrorCallback(fn func(err error)) {
	b.onError = fn
}

// State returns the current lifecycle state.
func (b *BootstrapService) State() models.AgentState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start registers the display over HTTP, opens the realtime channel, and
// begins heartbeating. A warning no-op unless currently stopped.
// Registration or connect failure transitions to ERROR and returns the
// error.
func (b *BootstrapService) Start() error {
	b.mu.Lock()
	if b.state != models.AgentStateStopped {
		b.mu.Unlock()
		b.logger.Warn().Str("state", string(b.state)).Msg("Start ignored, agent is not stopped")
		return nil
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	ctx := b.ctx
	b.mu.Unlock()

	b.setState(models.AgentStateStarting)
	b.logger.Info().Msg("Starting signage agent")

	b.setState(models.AgentStateRegistering)
	result := b.registrar.RegisterDisplay(ctx, b.httpClient)
	if !result.Success || result.DisplayID == "" {
		err := fmt.Errorf("display registration failed: %s", result.Error)
		b.setState(models.AgentStateError)
		b.emitError(err)
		return err
	}

	b.httpClient.SetDisplayID(result.DisplayID)

	b.setState(models.AgentStateConnecting)
	if err := b.socketClient.Connect(ctx, result.DisplayID); err != nil {
		b.setState(models.AgentStateError)
		b.emitError(err)
		return err
	}

	b.setState(models.AgentStateRunning)
	if err := b.heartbeat.Start(b.sendHeartbeat); err != nil {
		b.logger.Warn().Err(err).Msg("Heartbeat did not start")
	}

	b.logger.Info().Str("display_id", result.DisplayID).Msg("Signage agent running")
	return nil
}

// Stop tears the agent down: actions, heartbeat, socket, registration.
// Idempotent.
func (b *BootstrapService) Stop() {
	b.mu.Lock()
	if b.state == models.AgentStateStopped {
		b.mu.Unlock()
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
		b.ctx = nil
	}
	b.mu.Unlock()

	b.logger.Info().Msg("Stopping signage agent")

	b.actions.StopAll()
	if err := b.heartbeat.Stop(); err != nil {
		b.logger.Warn().Err(err).Msg("Heartbeat stop failed")
	}
	b.socketClient.Disconnect()
	b.registrar.ClearRegistration()

	b.setState(models.AgentStateStopped)
	b.logger.Info().Msg("Signage agent stopped")
}

// OnDisconnected handles a transient socket drop: everything playback- and
// heartbeat-related stops, then the reconnect loop takes over.
func (b *BootstrapService) OnDisconnected(err error) {
	if b.State() == models.AgentStateStopped {
		return
	}

	b.logger.Warn().Err(err).Msg("Realtime channel lost, entering reconnect")

	b.actions.StopAll()
	if stopErr := b.heartbeat.Stop(); stopErr != nil {
		b.logger.Warn().Err(stopErr).Msg("Heartbeat stop failed")
	}

	b.setState(models.AgentStateReconnecting)
	go b.attemptReconnect()
}

// OnSocketError surfaces exhausted-retry transport failures as agent error
// events without crashing.
func (b *BootstrapService) OnSocketError(err error) {
	b.emitError(err)
}

// attemptReconnect retries the realtime connection every reconnect interval
// while the agent remains in RECONNECTING. The state check before each round
// guards against races with an explicit Stop. After the configured number of
// failed rounds the agent gives up and enters ERROR.
func (b *BootstrapService) attemptReconnect() {
	attempts := 0

	for {
		b.mu.Lock()
		if b.state != models.AgentStateReconnecting {
			b.mu.Unlock()
			return
		}
		ctx := b.ctx
		b.mu.Unlock()
		if ctx == nil {
			return
		}

		displayID := b.registrar.DisplayID()
		if displayID == "" {
			err := fmt.Errorf("cannot reconnect without a registered display")
			b.setState(models.AgentStateError)
			b.emitError(err)
			return
		}

		if err := b.socketClient.Connect(ctx, displayID); err == nil {
			b.setState(models.AgentStateRunning)
			if hbErr := b.heartbeat.Start(b.sendHeartbeat); hbErr != nil {
				b.logger.Warn().Err(hbErr).Msg("Heartbeat did not restart")
			}
			b.logger.Info().Int("attempts", attempts+1).Msg("Reconnected to Core")
			return
		}

		attempts++
		if attempts >= b.config.MaxReconnectAttempts {
			err := fmt.Errorf("gave up reconnecting after %d attempts", attempts)
			b.setState(models.AgentStateError)
			b.emitError(err)
			return
		}

		b.logger.Warn().Int("attempt", attempts).Msg("Reconnect round failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.config.ReconnectInterval):
		}
	}
}

// sendHeartbeat relays heartbeats over the socket, falling back to HTTP when
// the realtime channel is down.
func (b *BootstrapService) sendHeartbeat(payload models.HeartbeatPayload) error {
	if b.socketClient.IsConnected() {
		return b.socketClient.SendHeartbeat(payload)
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		return nil
	}

	envelope := b.httpClient.SendHeartbeat(ctx, payload)
	if !envelope.Success {
		return fmt.Errorf("fallback heartbeat failed: %s", envelope.Error)
	}
	return nil
}

// handleActionStatus relays action transitions upstream and keeps the
// heartbeat's last-action marker current.
func (b *BootstrapService) handleActionStatus(update models.ActionStatusUpdate) {
	b.heartbeat.SetLastActionExecutionID(update.ActionExecutionID)

	if b.socketClient.IsConnected() {
		if err := b.socketClient.SendActionStatus(update); err != nil {
			b.logger.Warn().Err(err).Str("action_id", update.ActionExecutionID).Msg("Failed to relay action status")
		}
		return
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		return
	}
	if envelope := b.httpClient.ReportActionStatus(ctx, update); !envelope.Success {
		b.logger.Warn().Str("action_id", update.ActionExecutionID).Str("error", envelope.Error).
			Msg("Fallback action status report failed")
	}
}

// OnActionExecute forwards the inbound execute command to the action handler.
func (b *BootstrapService) OnActionExecute(cmd models.ActionCommand) {
	b.actions.Execute(cmd)
}

// OnActionPause forwards the inbound pause command.
func (b *BootstrapService) OnActionPause(actionExecutionID string) {
	b.actions.Pause(actionExecutionID)
}

// OnActionResume forwards the inbound resume command.
func (b *BootstrapService) OnActionResume(actionExecutionID string) {
	b.actions.Resume(actionExecutionID)
}

// OnActionStop forwards the inbound stop command.
func (b *BootstrapService) OnActionStop(actionExecutionID string) {
	b.actions.Stop(actionExecutionID)
}

// OnPlayerStatusChange refreshes the heartbeat's player health flag.
func (b *BootstrapService) OnPlayerStatusChange(status models.PlayerStatus) {
	b.heartbeat.SetPlayerAlive(b.player.IsAlive())
}

// OnPlaybackComplete reflects natural playback completion onto the action
// layer.
func (b *BootstrapService) OnPlaybackComplete(mediaID string) {
	b.actions.HandlePlaybackComplete()
	b.heartbeat.SetPlayerAlive(b.player.IsAlive())
}

// OnPlayerError reflects a playback failure onto the action layer.
func (b *BootstrapService) OnPlayerError(err error) {
	b.actions.HandlePlayerError(err)
	b.heartbeat.SetPlayerAlive(b.player.IsAlive())
}

func (b *BootstrapService) setState(state models.AgentState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	previous := b.state
	b.state = state
	b.mu.Unlock()

	b.logger.Info().Str("from", string(previous)).Str("to", string(state)).Msg("Agent state changed")
	if b.onStateChange != nil {
		b.onStateChange(state)
	}
}

func (b *BootstrapService) emitError(err error) {
	b.logger.Error().Err(err).Msg("Agent error")
	if b.onError != nil {
		b.onError(err)
	}
}
