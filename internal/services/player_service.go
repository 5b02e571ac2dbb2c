package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/models"
)

// PlayerObserver receives local player lifecycle events. The method set is
// the complete event surface; there are no other player events.
type PlayerObserver interface {
	OnPlayerStatusChange(status models.PlayerStatus)
	OnPlaybackComplete(mediaID string)
	OnPlayerError(err error)
}

// LocalPlayerInterface drives the single active media playback session.
type LocalPlayerInterface interface {
	Play(media models.MediaPayload) error
	Pause() error
	Resume() error
	Stop()
	Status() models.PlayerStatus
	IsAlive() bool
	SetObserver(observer PlayerObserver)
}

// PlayerService is the local playback backend driver. It supports one
// playback session at a time; a new Play always stops the previous session
// first.
type PlayerService struct {
	logger   zerolog.Logger
	observer PlayerObserver

	mu           sync.Mutex
	status       models.PlayerStatus
	media        *models.MediaPayload
	session      uint64 // bumped on every play/stop, invalidates stale timers
	timer        *time.Timer
	remaining    time.Duration
	playingSince time.Time
}

// NewPlayerService creates an idle local player.
func NewPlayerService(logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		logger: logger,
		status: models.PlayerStatusIdle,
	}
}

// SetObserver registers the receiver for player events.
func (p *PlayerService) SetObserver(observer PlayerObserver) {
	p.observer = observer
}

// Play stops any current session and starts playing the given media. Media
// with a positive duration completes automatically after that many seconds.
// Load failures set the error status and are returned to the caller.
func (p *PlayerService) Play(media models.MediaPayload) error {
	p.mu.Lock()

	p.stopLocked()
	p.setStatusLocked(models.PlayerStatusLoading)

	if media.URL == "" && media.EmbedID == "" {
		err := fmt.Errorf("media %s has neither a URL nor an embed ID", media.ID)
		p.setStatusLocked(models.PlayerStatusError)
		p.mu.Unlock()

		p.logger.Error().Err(err).Str("media_id", media.ID).Msg("Failed to load media")
		p.notifyError(err)
		return err
	}

	m := media
	p.media = &m
	p.playingSince = time.Now()
	p.setStatusLocked(models.PlayerStatusPlaying)

	if media.Duration > 0 {
		p.remaining = time.Duration(media.Duration) * time.Second
		p.scheduleCompletionLocked(p.remaining)
	} else {
		p.remaining = 0
	}

	p.mu.Unlock()

	p.logger.Info().Str("media_id", media.ID).Str("player_type", string(media.PlayerType)).
		Int("duration_s", media.Duration).Msg("Playback started")
	return nil
}

// Pause suspends the current session. A warning no-op unless playing.
func (p *PlayerService) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != models.PlayerStatusPlaying {
		p.logger.Warn().Str("status", string(p.status)).Msg("Pause ignored, player is not playing")
		return errors.New("player is not playing")
	}

	p.cancelTimerLocked()
	if p.media != nil && p.media.Duration > 0 {
		p.remaining -= time.Since(p.playingSince)
	}
	p.setStatusLocked(models.PlayerStatusPaused)

	p.logger.Info().Dur("remaining", p.remaining).Msg("Playback paused")
	return nil
}

// Resume continues a paused session, rescheduling completion for the
// remaining time if any. A warning no-op unless paused.
func (p *PlayerService) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != models.PlayerStatusPaused {
		p.logger.Warn().Str("status", string(p.status)).Msg("Resume ignored, player is not paused")
		return errors.New("player is not paused")
	}

	p.playingSince = time.Now()
	if p.media != nil && p.media.Duration > 0 && p.remaining > 0 {
		p.scheduleCompletionLocked(p.remaining)
	}
	p.setStatusLocked(models.PlayerStatusPlaying)

	p.logger.Info().Dur("remaining", p.remaining).Msg("Playback resumed")
	return nil
}

// Stop tears down the current session. A silent no-op when there is nothing
// to stop.
func (p *PlayerService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == models.PlayerStatusIdle || p.status == models.PlayerStatusStopped {
		return
	}

	p.stopLocked()
	p.setStatusLocked(models.PlayerStatusStopped)
	p.logger.Info().Msg("Playback stopped")
}

// Status returns the current player status.
func (p *PlayerService) Status() models.PlayerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// IsAlive reports player health: false only after an error.
func (p *PlayerService) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status != models.PlayerStatusError
}

// stopLocked clears the session without emitting a status change.
func (p *PlayerService) stopLocked() {
	p.cancelTimerLocked()
	p.session++
	p.media = nil
	p.remaining = 0
	p.playingSince = time.Time{}
}

func (p *PlayerService) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// scheduleCompletionLocked arms the automatic completion timer. The session
// snapshot keeps a timer from a superseded session from firing into the
// current one.
func (p *PlayerService) scheduleCompletionLocked(d time.Duration) {
	session := p.session
	p.timer = time.AfterFunc(d, func() {
		p.completeSession(session)
	})
}

// completeSession fires when a bounded media's duration elapses. Completion
// is modeled as a stop; only the playbackComplete event distinguishes it
// from a manual stop.
func (p *PlayerService) completeSession(session uint64) {
	p.mu.Lock()
	if session != p.session || p.status != models.PlayerStatusPlaying {
		p.mu.Unlock()
		return
	}

	mediaID := ""
	if p.media != nil {
		mediaID = p.media.ID
	}
	p.stopLocked()
	p.setStatusLocked(models.PlayerStatusStopped)
	p.mu.Unlock()

	p.logger.Info().Str("media_id", mediaID).Msg("Playback completed")
	if p.observer != nil {
		p.observer.OnPlaybackComplete(mediaID)
	}
}

// setStatusLocked records the status; the change notification fires
// asynchronously so observers may call back into the player.
func (p *PlayerService) setStatusLocked(status models.PlayerStatus) {
	if p.status == status {
		return
	}
	p.status = status

	if p.observer != nil {
		go p.observer.OnPlayerStatusChange(status)
	}
}

// notifyError fires asynchronously: the caller may still hold locks that an
// observer reaching back into the action layer would need.
func (p *PlayerService) notifyError(err error) {
	if p.observer != nil {
		go p.observer.OnPlayerError(err)
	}
}
