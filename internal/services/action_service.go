package services

import (
	"fmt"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/models"
)

// ActionStatusFunc receives every action status transition for upstream
// reporting.
type ActionStatusFunc func(update models.ActionStatusUpdate)

// ActionHandlerInterface maps inbound remote commands onto the local player
// and tracks one active action per display slot.
type ActionHandlerInterface interface {
	Execute(cmd models.ActionCommand)
	Pause(actionExecutionID string)
	Resume(actionExecutionID string)
	Stop(actionExecutionID string)
	StopAll()
	Action(actionExecutionID string) (models.ActionState, bool)
	SetStatusCallback(fn ActionStatusFunc)
	HandlePlaybackComplete()
	HandlePlayerError(err error)
}

// ActionService executes Core playback commands against the local player.
// At most one action per slot is active (running or paused) at any instant;
// a new execute on a busy slot preempts the previous action. Terminal
// entries stay queryable for the retention window and are swept on the next
// execute.
type ActionService struct {
	player    LocalPlayerInterface
	registrar RegistrarInterface
	logger    zerolog.Logger

	actionTimeout time.Duration
	retention     time.Duration

	actions     cmap.ConcurrentMap[string, *models.ActionState]
	slotActions cmap.ConcurrentMap[string, string]

	mu             sync.Mutex // serializes compound transitions
	activeActionID string
	watchdogs      map[string]*time.Timer
	onStatus       ActionStatusFunc
}

// NewActionService initializes a new ActionService.
func NewActionService(player LocalPlayerInterface, registrar RegistrarInterface, actionTimeout, retention time.Duration, logger zerolog.Logger) *ActionService {
	return &ActionService{
		player:        player,
		registrar:     registrar,
		logger:        logger,
		actionTimeout: actionTimeout,
		retention:     retention,
		actions:       cmap.New[*models.ActionState](),
		slotActions:   cmap.New[string](),
		watchdogs:     make(map[string]*time.Timer),
	}
}

// SetStatusCallback registers the upstream status relay.
func (a *ActionService) SetStatusCallback(fn ActionStatusFunc) {
	a.mu.Lock()
	a.onStatus = fn
	a.mu.Unlock()
}

// Execute starts a new action on its slot, preempting any active
// predecessor there. Player failures mark the action failed and the slot
// errored without tearing down the agent. The media load runs outside the
// lock so the watchdog can observe an action stuck in pending.
func (a *ActionService) Execute(cmd models.ActionCommand) {
	a.mu.Lock()

	a.sweepExpiredLocked()

	if prevID, ok := a.slotActions.Get(cmd.DisplaySlotID); ok {
		a.logger.Info().Str("slot_id", cmd.DisplaySlotID).Str("previous", prevID).
			Str("action_id", cmd.ActionExecutionID).Msg("Preempting active action on slot")
		a.stopActionLocked(prevID)
	}

	state := &models.ActionState{
		ExecutionID: cmd.ActionExecutionID,
		SlotID:      cmd.DisplaySlotID,
		Status:      models.ActionStatusPending,
		StartedAt:   time.Now(),
	}
	a.actions.Set(cmd.ActionExecutionID, state)
	a.slotActions.Set(cmd.DisplaySlotID, cmd.ActionExecutionID)
	a.emitLocked(state)

	a.registrar.UpdateSlotStatus(cmd.DisplaySlotID, models.SlotStatusPlaying)
	a.armWatchdogLocked(cmd.ActionExecutionID)
	a.mu.Unlock()

	a.logger.Info().Str("action_id", cmd.ActionExecutionID).Str("slot_id", cmd.DisplaySlotID).
		Str("media_id", cmd.MediaSource.ID).Msg("Executing action")

	err := a.player.Play(cmd.MediaSource)

	a.mu.Lock()
	defer a.mu.Unlock()

	if state.Status != models.ActionStatusPending {
		// The watchdog or an explicit stop ended this action mid-load. A
		// load that still succeeded must not keep playing.
		if err == nil && a.activeActionID == "" {
			a.player.Stop()
		}
		return
	}

	a.disarmWatchdogLocked(cmd.ActionExecutionID)
	if err != nil {
		a.failLocked(state, err.Error())
		return
	}

	state.Status = models.ActionStatusRunning
	a.emitLocked(state)
	a.activeActionID = cmd.ActionExecutionID
}

// Pause suspends a running action. A warning no-op when the action is
// unknown or not running.
func (a *ActionService) Pause(actionExecutionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.actions.Get(actionExecutionID)
	if !ok || state.Status != models.ActionStatusRunning {
		a.logger.Warn().Str("action_id", actionExecutionID).Msg("Pause ignored, action unknown or not running")
		return
	}

	if err := a.player.Pause(); err != nil {
		a.logger.Warn().Err(err).Str("action_id", actionExecutionID).Msg("Player refused pause")
		return
	}

	state.Status = models.ActionStatusPaused
	a.emitLocked(state)
	a.registrar.UpdateSlotStatus(state.SlotID, models.SlotStatusPaused)
	a.logger.Info().Str("action_id", actionExecutionID).Msg("Action paused")
}

// Resume continues a paused action. A warning no-op when the action is
// unknown or not paused.
func (a *ActionService) Resume(actionExecutionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.actions.Get(actionExecutionID)
	if !ok || state.Status != models.ActionStatusPaused {
		a.logger.Warn().Str("action_id", actionExecutionID).Msg("Resume ignored, action unknown or not paused")
		return
	}

	if err := a.player.Resume(); err != nil {
		a.logger.Warn().Err(err).Str("action_id", actionExecutionID).Msg("Player refused resume")
		return
	}

	state.Status = models.ActionStatusRunning
	a.emitLocked(state)
	a.registrar.UpdateSlotStatus(state.SlotID, models.SlotStatusPlaying)
	a.logger.Info().Str("action_id", actionExecutionID).Msg("Action resumed")
}

// Stop terminates an action and frees its slot. A warning no-op when the
// action is unknown or already terminal.
func (a *ActionService) Stop(actionExecutionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.actions.Get(actionExecutionID)
	if !ok {
		a.logger.Warn().Str("action_id", actionExecutionID).Msg("Stop ignored, unknown action")
		return
	}
	if state.Status.IsTerminal() {
		a.logger.Warn().Str("action_id", actionExecutionID).Str("status", string(state.Status)).
			Msg("Stop ignored, action already terminal")
		return
	}

	a.stopActionLocked(actionExecutionID)
}

// StopAll stops the player once, marks every non-terminal action stopped,
// and clears both maps. Used on shutdown and disconnect teardown; per-slot
// status side effects are intentionally skipped.
func (a *ActionService) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.player.Stop()

	now := time.Now()
	for _, state := range a.actions.Items() {
		if state.Status.IsTerminal() {
			continue
		}
		state.Status = models.ActionStatusStopped
		state.EndedAt = &now
		a.emitLocked(state)
	}

	for id, timer := range a.watchdogs {
		timer.Stop()
		delete(a.watchdogs, id)
	}
	a.actions.Clear()
	a.slotActions.Clear()
	a.activeActionID = ""

	a.logger.Info().Msg("All actions stopped")
}

// Action returns a copy of the tracked state for the given execution ID.
func (a *ActionService) Action(actionExecutionID string) (models.ActionState, bool) {
	state, ok := a.actions.Get(actionExecutionID)
	if !ok {
		return models.ActionState{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return *state, true
}

// HandlePlaybackComplete reflects the player's natural completion onto the
// active action.
func (a *ActionService) HandlePlaybackComplete() {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.activeStateLocked()
	if !ok {
		a.logger.Debug().Msg("Playback completed with no active action")
		return
	}

	now := time.Now()
	state.Status = models.ActionStatusCompleted
	state.EndedAt = &now
	a.emitLocked(state)

	a.cleanupSlotLocked(state, models.SlotStatusIdle)
	a.logger.Info().Str("action_id", state.ExecutionID).Msg("Action completed")
}

// HandlePlayerError reflects a player failure onto the active action.
func (a *ActionService) HandlePlayerError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.activeStateLocked()
	if !ok {
		a.logger.Debug().Err(err).Msg("Player error with no active action")
		return
	}

	a.failLocked(state, err.Error())
	a.logger.Warn().Err(err).Str("action_id", state.ExecutionID).Msg("Action failed on player error")
}

// activeStateLocked resolves the single currently running or paused action.
func (a *ActionService) activeStateLocked() (*models.ActionState, bool) {
	if a.activeActionID == "" {
		return nil, false
	}
	state, ok := a.actions.Get(a.activeActionID)
	if !ok || state.Status.IsTerminal() {
		return nil, false
	}
	return state, true
}

// stopActionLocked forcibly stops one non-terminal action: player stop,
// stopped status, slot freed.
func (a *ActionService) stopActionLocked(actionExecutionID string) {
	state, ok := a.actions.Get(actionExecutionID)
	if !ok {
		return
	}

	a.disarmWatchdogLocked(actionExecutionID)
	a.player.Stop()

	if !state.Status.IsTerminal() {
		now := time.Now()
		state.Status = models.ActionStatusStopped
		state.EndedAt = &now
		a.emitLocked(state)
	}

	a.cleanupSlotLocked(state, models.SlotStatusIdle)
	a.logger.Info().Str("action_id", actionExecutionID).Msg("Action stopped")
}

// failLocked transitions an action to failed, marks its slot errored, and
// frees the slot mapping.
func (a *ActionService) failLocked(state *models.ActionState, message string) {
	now := time.Now()
	state.Status = models.ActionStatusFailed
	state.ErrorMessage = message
	state.EndedAt = &now
	a.emitLocked(state)

	a.cleanupSlotLocked(state, models.SlotStatusError)
}

// cleanupSlotLocked frees the slot mapping and active marker for a
// terminated action.
func (a *ActionService) cleanupSlotLocked(state *models.ActionState, slotStatus models.SlotStatus) {
	if current, ok := a.slotActions.Get(state.SlotID); ok && current == state.ExecutionID {
		a.slotActions.Remove(state.SlotID)
	}
	a.registrar.UpdateSlotStatus(state.SlotID, slotStatus)
	if a.activeActionID == state.ExecutionID {
		a.activeActionID = ""
	}
}

// armWatchdogLocked force-fails an action stuck in pending past the action
// timeout.
func (a *ActionService) armWatchdogLocked(actionExecutionID string) {
	if a.actionTimeout <= 0 {
		return
	}
	a.watchdogs[actionExecutionID] = time.AfterFunc(a.actionTimeout, func() {
		a.failStuckAction(actionExecutionID)
	})
}

func (a *ActionService) disarmWatchdogLocked(actionExecutionID string) {
	if timer, ok := a.watchdogs[actionExecutionID]; ok {
		timer.Stop()
		delete(a.watchdogs, actionExecutionID)
	}
}

func (a *ActionService) failStuckAction(actionExecutionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.actions.Get(actionExecutionID)
	if !ok || state.Status != models.ActionStatusPending {
		return
	}

	delete(a.watchdogs, actionExecutionID)
	a.failLocked(state, fmt.Sprintf("action timed out after %s in pending", a.actionTimeout))
	a.logger.Warn().Str("action_id", actionExecutionID).Msg("Action watchdog fired")
}

// sweepExpiredLocked evicts terminal entries older than the retention
// window, bounding the action map.
func (a *ActionService) sweepExpiredLocked() {
	if a.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-a.retention)
	for id, state := range a.actions.Items() {
		if state.Status.IsTerminal() && state.EndedAt != nil && state.EndedAt.Before(cutoff) {
			a.actions.Remove(id)
		}
	}
}

func (a *ActionService) emitLocked(state *models.ActionState) {
	if a.onStatus == nil {
		return
	}
	a.onStatus(models.ActionStatusUpdate{
		ActionExecutionID: state.ExecutionID,
		Status:            state.Status,
		ErrorMessage:      state.ErrorMessage,
	})
}
