package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/models"
	"github.com/o4o-platform/signage-agent/internal/sysinfo"
)

// SendHeartbeatFunc delivers one heartbeat payload. Supplied by the caller
// so the cadence is decoupled from the transport choice.
type SendHeartbeatFunc func(payload models.HeartbeatPayload) error

// HeartbeatInterface manages periodic liveness reporting.
type HeartbeatInterface interface {
	Start(send SendHeartbeatFunc) error
	Stop() error
	SetPlayerAlive(alive bool)
	SetLastActionExecutionID(id string)
}

// HeartbeatService assembles and emits liveness snapshots on a fixed
// interval.
type HeartbeatService struct {
	Interval  time.Duration
	Registrar RegistrarInterface
	SysInfo   *sysinfo.Collector // nil disables host stats
	Logger    zerolog.Logger

	mu           sync.Mutex
	send         SendHeartbeatFunc
	playerAlive  bool
	lastActionID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(interval time.Duration, registrar RegistrarInterface, sysInfo *sysinfo.Collector, logger zerolog.Logger) *HeartbeatService {
	return &HeartbeatService{
		Interval:    interval,
		Registrar:   registrar,
		SysInfo:     sysInfo,
		Logger:      logger,
		playerAlive: true,
	}
}

// Start sends one immediate heartbeat and then one per interval via the
// given callback.
func (h *HeartbeatService) Start(send SendHeartbeatFunc) error {
	h.mu.Lock()
	if h.ctx != nil {
		h.mu.Unlock()
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.send = send
	h.ctx, h.cancel = context.WithCancel(context.Background())
	ctx := h.ctx
	h.mu.Unlock()

	h.beat()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop(ctx)
	}()

	h.Logger.Info().Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop cancels the timer and drops the callback. Idempotent.
func (h *HeartbeatService) Stop() error {
	h.mu.Lock()
	if h.ctx == nil {
		h.mu.Unlock()
		h.Logger.Debug().Msg("HeartbeatService is not running")
		return nil
	}

	h.cancel()
	h.ctx = nil
	h.cancel = nil
	h.send = nil
	h.mu.Unlock()

	h.wg.Wait()

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// SetPlayerAlive records the player health flag for subsequent beats.
func (h *HeartbeatService) SetPlayerAlive(alive bool) {
	h.mu.Lock()
	h.playerAlive = alive
	h.mu.Unlock()
}

// SetLastActionExecutionID records the most recent action for subsequent
// beats.
func (h *HeartbeatService) SetLastActionExecutionID(id string) {
	h.mu.Lock()
	h.lastActionID = id
	h.mu.Unlock()
}

// runHeartbeatLoop sends heartbeat messages at the configured interval.
func (h *HeartbeatService) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

// beat assembles and sends one heartbeat. Skipped with a warning when no
// registration exists yet; the timer keeps running.
func (h *HeartbeatService) beat() {
	slots, displayID, hardwareID, ok := h.Registrar.Snapshot()
	if !ok {
		h.Logger.Warn().Msg("Skipping heartbeat, display not registered")
		return
	}

	h.mu.Lock()
	send := h.send
	payload := models.HeartbeatPayload{
		DisplayID:             displayID,
		HardwareID:            hardwareID,
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		SlotStatuses:          slots,
		PlayerAlive:           h.playerAlive,
		LastActionExecutionID: h.lastActionID,
	}
	h.mu.Unlock()

	if h.SysInfo != nil {
		payload.System = h.SysInfo.Collect()
	}

	if send == nil {
		return
	}
	if err := send(payload); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to send heartbeat")
	} else {
		h.Logger.Debug().Str("display_id", displayID).Msg("Heartbeat sent successfully")
	}
}
