package models

// PlayerType selects which local playback backend renders the media.
type PlayerType string

const (
	PlayerTypeInternalVideo PlayerType = "internal_video"
	PlayerTypeInternalAudio PlayerType = "internal_audio"
	PlayerTypeEmbed         PlayerType = "embed"
)

// MediaPayload describes the content a single play call renders. Immutable
// once handed to the player.
type MediaPayload struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	URL        string     `json:"url,omitempty"`
	EmbedID    string     `json:"embedId,omitempty"`
	PlayerType PlayerType `json:"playerType"`
	Duration   int        `json:"duration,omitempty"` // seconds, 0 = unbounded
}

// PlayerStatus is the local player's lifecycle status.
type PlayerStatus string

const (
	PlayerStatusIdle    PlayerStatus = "idle"
	PlayerStatusLoading PlayerStatus = "loading"
	PlayerStatusPlaying PlayerStatus = "playing"
	PlayerStatusPaused  PlayerStatus = "paused"
	PlayerStatusStopped PlayerStatus = "stopped"
	PlayerStatusError   PlayerStatus = "error"
)
