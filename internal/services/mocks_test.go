package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/o4o-platform/signage-agent/internal/models"
	"github.com/o4o-platform/signage-agent/pkg/corehttp"
	"github.com/o4o-platform/signage-agent/pkg/socket"
)

// MockPlayer is a mock implementation of LocalPlayerInterface.
type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) Play(media models.MediaPayload) error {
	args := m.Called(media)
	return args.Error(0)
}

func (m *MockPlayer) Pause() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPlayer) Resume() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPlayer) Stop() {
	m.Called()
}

func (m *MockPlayer) Status() models.PlayerStatus {
	args := m.Called()
	return args.Get(0).(models.PlayerStatus)
}

func (m *MockPlayer) IsAlive() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockPlayer) SetObserver(observer PlayerObserver) {
	m.Called(observer)
}

// MockRegistrar is a mock implementation of RegistrarInterface.
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterDisplay(ctx context.Context, httpClient corehttp.CoreHTTPClient) models.RegistrationResult {
	args := m.Called(ctx, httpClient)
	return args.Get(0).(models.RegistrationResult)
}

func (m *MockRegistrar) UpdateSlotStatus(slotID string, status models.SlotStatus) {
	m.Called(slotID, status)
}

func (m *MockRegistrar) ClearRegistration() {
	m.Called()
}

func (m *MockRegistrar) DisplayID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRegistrar) HardwareID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRegistrar) Snapshot() ([]models.SlotStatusEntry, string, string, bool) {
	args := m.Called()
	entries, _ := args.Get(0).([]models.SlotStatusEntry)
	return entries, args.String(1), args.String(2), args.Bool(3)
}

// MockActionHandler is a mock implementation of ActionHandlerInterface.
type MockActionHandler struct {
	mock.Mock
}

func (m *MockActionHandler) Execute(cmd models.ActionCommand) {
	m.Called(cmd)
}

func (m *MockActionHandler) Pause(actionExecutionID string) {
	m.Called(actionExecutionID)
}

func (m *MockActionHandler) Resume(actionExecutionID string) {
	m.Called(actionExecutionID)
}

func (m *MockActionHandler) Stop(actionExecutionID string) {
	m.Called(actionExecutionID)
}

func (m *MockActionHandler) StopAll() {
	m.Called()
}

func (m *MockActionHandler) Action(actionExecutionID string) (models.ActionState, bool) {
	args := m.Called(actionExecutionID)
	return args.Get(0).(models.ActionState), args.Bool(1)
}

func (m *MockActionHandler) SetStatusCallback(fn ActionStatusFunc) {
	m.Called(fn)
}

func (m *MockActionHandler) HandlePlaybackComplete() {
	m.Called()
}

func (m *MockActionHandler) HandlePlayerError(err error) {
	m.Called(err)
}

// MockHeartbeat is a mock implementation of HeartbeatInterface.
type MockHeartbeat struct {
	mock.Mock
}

func (m *MockHeartbeat) Start(send SendHeartbeatFunc) error {
	args := m.Called(send)
	return args.Error(0)
}

func (m *MockHeartbeat) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockHeartbeat) SetPlayerAlive(alive bool) {
	m.Called(alive)
}

func (m *MockHeartbeat) SetLastActionExecutionID(id string) {
	m.Called(id)
}

// MockSocketClient is a mock implementation of socket.CoreSocketClient.
type MockSocketClient struct {
	mock.Mock
}

func (m *MockSocketClient) Connect(ctx context.Context, displayID string) error {
	args := m.Called(ctx, displayID)
	return args.Error(0)
}

func (m *MockSocketClient) Disconnect() {
	m.Called()
}

func (m *MockSocketClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSocketClient) SendHeartbeat(payload models.HeartbeatPayload) error {
	args := m.Called(payload)
	return args.Error(0)
}

func (m *MockSocketClient) SendActionStatus(update models.ActionStatusUpdate) error {
	args := m.Called(update)
	return args.Error(0)
}

func (m *MockSocketClient) SetActionListener(l socket.ActionListener) {
	m.Called(l)
}

func (m *MockSocketClient) SetConnectionListener(l socket.ConnectionListener) {
	m.Called(l)
}

// MockHTTPClient is a mock implementation of corehttp.CoreHTTPClient.
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) SetDisplayID(displayID string) {
	m.Called(displayID)
}

func (m *MockHTTPClient) Post(ctx context.Context, path string, body any) corehttp.Envelope {
	args := m.Called(ctx, path, body)
	return args.Get(0).(corehttp.Envelope)
}

func (m *MockHTTPClient) Get(ctx context.Context, path string) corehttp.Envelope {
	args := m.Called(ctx, path)
	return args.Get(0).(corehttp.Envelope)
}

func (m *MockHTTPClient) RegisterDisplay(ctx context.Context, req models.RegistrationRequest) corehttp.Envelope {
	args := m.Called(ctx, req)
	return args.Get(0).(corehttp.Envelope)
}

func (m *MockHTTPClient) SendHeartbeat(ctx context.Context, payload models.HeartbeatPayload) corehttp.Envelope {
	args := m.Called(ctx, payload)
	return args.Get(0).(corehttp.Envelope)
}

func (m *MockHTTPClient) ReportActionStatus(ctx context.Context, update models.ActionStatusUpdate) corehttp.Envelope {
	args := m.Called(ctx, update)
	return args.Get(0).(corehttp.Envelope)
}

func (m *MockHTTPClient) FetchPendingActions(ctx context.Context, displayID string) corehttp.Envelope {
	args := m.Called(ctx, displayID)
	return args.Get(0).(corehttp.Envelope)
}

// statusRecorder collects action status updates emitted during a test.
type statusRecorder struct {
	mu      sync.Mutex
	updates []models.ActionStatusUpdate
}

func (r *statusRecorder) record(update models.ActionStatusUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
}

func (r *statusRecorder) all() []models.ActionStatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ActionStatusUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *statusRecorder) statuses(actionExecutionID string) []models.ActionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ActionStatus
	for _, u := range r.updates {
		if u.ActionExecutionID == actionExecutionID {
			out = append(out, u.Status)
		}
	}
	return out
}
