package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/o4o-platform/signage-agent/internal/models"
	"github.com/o4o-platform/signage-agent/internal/utils"
	"github.com/o4o-platform/signage-agent/pkg/corehttp"
)

type bootstrapFixture struct {
	bootstrap *BootstrapService
	registrar *MockRegistrar
	player    *MockPlayer
	actions   *MockActionHandler
	heartbeat *MockHeartbeat
	socket    *MockSocketClient
	http      *MockHTTPClient

	mu     sync.Mutex
	states []models.AgentState
	errors []error
}

func (f *bootstrapFixture) recordedStates() []models.AgentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AgentState, len(f.states))
	copy(out, f.states)
	return out
}

func (f *bootstrapFixture) recordedErrors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]error, len(f.errors))
	copy(out, f.errors)
	return out
}

func newBootstrapFixture(t *testing.T) *bootstrapFixture {
	t.Helper()

	f := &bootstrapFixture{
		registrar: new(MockRegistrar),
		player:    new(MockPlayer),
		actions:   new(MockActionHandler),
		heartbeat: new(MockHeartbeat),
		socket:    new(MockSocketClient),
		http:      new(MockHTTPClient),
	}

	f.socket.On("SetActionListener", mock.Anything).Return()
	f.socket.On("SetConnectionListener", mock.Anything).Return()
	f.player.On("SetObserver", mock.Anything).Return()
	f.actions.On("SetStatusCallback", mock.Anything).Return()

	config := &utils.Config{
		CoreServerURL:        "http://core.local",
		CoreServerWSURL:      "ws://core.local",
		HeartbeatInterval:    50 * time.Millisecond,
		ReconnectInterval:    20 * time.Millisecond,
		MaxReconnectAttempts: 3,
		ConnectionTimeout:    time.Second,
		ActionTimeout:        time.Minute,
	}

	f.bootstrap = NewBootstrapService(config, f.registrar, f.player, f.actions, f.heartbeat,
		f.socket, f.http, zerolog.Nop())

	f.bootstrap.SetStateChangeCallback(func(state models.AgentState) {
		f.mu.Lock()
		f.states = append(f.states, state)
		f.mu.Unlock()
	})
	f.bootstrap.SetErrorCallback(func(err error) {
		f.mu.Lock()
		f.errors = append(f.errors, err)
		f.mu.Unlock()
	})

	return f
}

func (f *bootstrapFixture) expectSuccessfulStart() {
	f.registrar.On("RegisterDisplay", mock.Anything, f.http).
		Return(models.RegistrationResult{Success: true, DisplayID: "display-1"})
	f.http.On("SetDisplayID", "display-1").Return()
	f.socket.On("Connect", mock.Anything, "display-1").Return(nil)
	f.heartbeat.On("Start", mock.Anything).Return(nil)
}

func (f *bootstrapFixture) expectStop() {
	f.actions.On("StopAll").Return()
	f.heartbeat.On("Stop").Return(nil)
	f.socket.On("Disconnect").Return()
	f.registrar.On("ClearRegistration").Return()
}

func TestBootstrapService_StartHappyPath(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()

	require.NoError(t, f.bootstrap.Start())

	assert.Equal(t, models.AgentStateRunning, f.bootstrap.State())
	assert.Equal(t, []models.AgentState{
		models.AgentStateStarting,
		models.AgentStateRegistering,
		models.AgentStateConnecting,
		models.AgentStateRunning,
	}, f.recordedStates())

	f.http.AssertCalled(t, "SetDisplayID", "display-1")
	f.heartbeat.AssertNumberOfCalls(t, "Start", 1)
}

func TestBootstrapService_StartIgnoredUnlessStopped(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()

	require.NoError(t, f.bootstrap.Start())
	require.NoError(t, f.bootstrap.Start(), "second start is a warning no-op")

	f.registrar.AssertNumberOfCalls(t, "RegisterDisplay", 1)
}

func TestBootstrapService_RegistrationFailure(t *testing.T) {
	f := newBootstrapFixture(t)
	f.registrar.On("RegisterDisplay", mock.Anything, f.http).
		Return(models.RegistrationResult{Success: false, Error: "quota exceeded"})

	err := f.bootstrap.Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, models.AgentStateError, f.bootstrap.State())
	require.NotEmpty(t, f.recordedErrors())

	f.socket.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
}

func TestBootstrapService_ConnectFailure(t *testing.T) {
	f := newBootstrapFixture(t)
	f.registrar.On("RegisterDisplay", mock.Anything, f.http).
		Return(models.RegistrationResult{Success: true, DisplayID: "display-1"})
	f.http.On("SetDisplayID", "display-1").Return()
	f.socket.On("Connect", mock.Anything, "display-1").Return(errors.New("refused"))

	err := f.bootstrap.Start()

	require.Error(t, err)
	assert.Equal(t, models.AgentStateError, f.bootstrap.State())
	f.heartbeat.AssertNotCalled(t, "Start", mock.Anything)
}

func TestBootstrapService_StopIsIdempotent(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()
	f.expectStop()

	require.NoError(t, f.bootstrap.Start())

	f.bootstrap.Stop()
	assert.Equal(t, models.AgentStateStopped, f.bootstrap.State())

	f.bootstrap.Stop()

	f.actions.AssertNumberOfCalls(t, "StopAll", 1)
	f.socket.AssertNumberOfCalls(t, "Disconnect", 1)
}

func TestBootstrapService_DisconnectTriggersReconnect(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()
	f.actions.On("StopAll").Return()
	f.heartbeat.On("Stop").Return(nil)
	f.registrar.On("DisplayID").Return("display-1")

	require.NoError(t, f.bootstrap.Start())

	f.bootstrap.OnDisconnected(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return f.bootstrap.State() == models.AgentStateRunning
	}, time.Second, 10*time.Millisecond, "agent should return to running after reconnect")

	f.actions.AssertNumberOfCalls(t, "StopAll", 1)
	f.heartbeat.AssertNumberOfCalls(t, "Stop", 1)
	f.heartbeat.AssertNumberOfCalls(t, "Start", 2)
	assert.Contains(t, f.recordedStates(), models.AgentStateReconnecting)
}

func TestBootstrapService_ReconnectGivesUpAfterCap(t *testing.T) {
	f := newBootstrapFixture(t)
	f.registrar.On("RegisterDisplay", mock.Anything, f.http).
		Return(models.RegistrationResult{Success: true, DisplayID: "display-1"})
	f.http.On("SetDisplayID", "display-1").Return()
	f.heartbeat.On("Start", mock.Anything).Return(nil)
	f.heartbeat.On("Stop").Return(nil)
	f.actions.On("StopAll").Return()
	f.registrar.On("DisplayID").Return("display-1")

	// First connect succeeds, every reconnect round fails
	f.socket.On("Connect", mock.Anything, "display-1").Return(nil).Once()
	f.socket.On("Connect", mock.Anything, "display-1").Return(errors.New("refused"))

	require.NoError(t, f.bootstrap.Start())
	f.bootstrap.OnDisconnected(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return f.bootstrap.State() == models.AgentStateError
	}, 2*time.Second, 10*time.Millisecond)

	require.NotEmpty(t, f.recordedErrors())
	// The heartbeat must not restart without a connection
	f.heartbeat.AssertNumberOfCalls(t, "Start", 1)
}

func TestBootstrapService_ReconnectAbortsWithoutDisplayID(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()
	f.actions.On("StopAll").Return()
	f.heartbeat.On("Stop").Return(nil)
	f.registrar.On("DisplayID").Return("")

	require.NoError(t, f.bootstrap.Start())
	f.bootstrap.OnDisconnected(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return f.bootstrap.State() == models.AgentStateError
	}, time.Second, 10*time.Millisecond)
}

func TestBootstrapService_ActionStatusRelay(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()
	require.NoError(t, f.bootstrap.Start())

	update := models.ActionStatusUpdate{ActionExecutionID: "a1", Status: models.ActionStatusRunning}
	f.heartbeat.On("SetLastActionExecutionID", "a1").Return()
	f.socket.On("IsConnected").Return(true)
	f.socket.On("SendActionStatus", update).Return(nil)

	f.bootstrap.handleActionStatus(update)

	f.heartbeat.AssertCalled(t, "SetLastActionExecutionID", "a1")
	f.socket.AssertCalled(t, "SendActionStatus", update)
	f.http.AssertNotCalled(t, "ReportActionStatus", mock.Anything, mock.Anything)
}

func TestBootstrapService_HeartbeatFallsBackToHTTP(t *testing.T) {
	f := newBootstrapFixture(t)
	f.expectSuccessfulStart()
	require.NoError(t, f.bootstrap.Start())

	payload := models.HeartbeatPayload{DisplayID: "display-1"}
	f.socket.On("IsConnected").Return(false)
	f.http.On("SendHeartbeat", mock.Anything, payload).Return(corehttp.Envelope{Success: true})

	require.NoError(t, f.bootstrap.sendHeartbeat(payload))
	f.http.AssertCalled(t, "SendHeartbeat", mock.Anything, payload)
}

func TestBootstrapService_InboundActionsForwarded(t *testing.T) {
	f := newBootstrapFixture(t)

	cmd := models.ActionCommand{ActionExecutionID: "a1", DisplaySlotID: "s1"}
	f.actions.On("Execute", cmd).Return()
	f.actions.On("Pause", "a1").Return()
	f.actions.On("Resume", "a1").Return()
	f.actions.On("Stop", "a1").Return()

	f.bootstrap.OnActionExecute(cmd)
	f.bootstrap.OnActionPause("a1")
	f.bootstrap.OnActionResume("a1")
	f.bootstrap.OnActionStop("a1")

	f.actions.AssertExpectations(t)
}

func TestBootstrapService_PlayerEventsUpdateHeartbeat(t *testing.T) {
	f := newBootstrapFixture(t)

	f.player.On("IsAlive").Return(false)
	f.heartbeat.On("SetPlayerAlive", false).Return()
	f.actions.On("HandlePlayerError", mock.Anything).Return()

	f.bootstrap.OnPlayerError(errors.New("decoder crashed"))

	f.actions.AssertCalled(t, "HandlePlayerError", mock.Anything)
	f.heartbeat.AssertCalled(t, "SetPlayerAlive", false)
}
