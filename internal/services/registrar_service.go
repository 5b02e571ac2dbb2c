package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/constants"
	"github.com/o4o-platform/signage-agent/internal/models"
	"github.com/o4o-platform/signage-agent/internal/utils"
	"github.com/o4o-platform/signage-agent/pkg/corehttp"
	"github.com/o4o-platform/signage-agent/pkg/identity"
)

// RegistrarInterface owns device identity and the current display
// registration.
type RegistrarInterface interface {
	RegisterDisplay(ctx context.Context, httpClient corehttp.CoreHTTPClient) models.RegistrationResult
	UpdateSlotStatus(slotID string, status models.SlotStatus)
	ClearRegistration()
	DisplayID() string
	HardwareID() string
	Snapshot() ([]models.SlotStatusEntry, string, string, bool)
}

// RegistrarService performs the registration handshake with Core and tracks
// the resulting display and slot state.
type RegistrarService struct {
	config     *utils.Config
	deviceInfo identity.DeviceInfoInterface
	logger     zerolog.Logger

	mu           sync.RWMutex
	hardwareID   string
	registration *models.DisplayRegistration
}

// NewRegistrarService initializes a registrar for the given device identity.
func NewRegistrarService(config *utils.Config, deviceInfo identity.DeviceInfoInterface, logger zerolog.Logger) *RegistrarService {
	return &RegistrarService{
		config:     config,
		deviceInfo: deviceInfo,
		logger:     logger,
	}
}

// RegisterDisplay resolves the hardware ID and posts the registration
// handshake. Failures of any kind yield a failed result and leave no
// registration behind.
func (r *RegistrarService) RegisterDisplay(ctx context.Context, httpClient corehttp.CoreHTTPClient) models.RegistrationResult {
	hardwareID, err := r.deviceInfo.ResolveHardwareID(r.config.HardwareID)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to resolve hardware ID")
		return models.RegistrationResult{Success: false, Error: err.Error()}
	}

	name := r.config.DeviceName
	if name == "" {
		name = "display-" + hardwareID
	}

	request := models.RegistrationRequest{
		HardwareID:   hardwareID,
		Name:         name,
		DeviceID:     r.deviceInfo.GetDeviceIdentity().DeviceID,
		AgentVersion: agentVersion(r.logger),
	}

	r.logger.Info().Str("hardware_id", hardwareID).Str("name", name).Msg("Registering display with Core")

	envelope := httpClient.RegisterDisplay(ctx, request)
	if !envelope.Success {
		r.logger.Error().Str("error", envelope.Error).Msg("Display registration rejected")
		return models.RegistrationResult{Success: false, Error: envelope.Error}
	}

	var data models.RegistrationData
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data.ID == "" {
		r.logger.Error().Err(err).Msg("Registration response missing display data")
		return models.RegistrationResult{Success: false, Error: "registration response missing display id"}
	}

	slots := make([]*models.SlotInfo, 0, len(data.Slots))
	for _, s := range data.Slots {
		slot := s
		if slot.Status == "" {
			slot.Status = models.SlotStatusIdle
		}
		slots = append(slots, &slot)
	}

	r.mu.Lock()
	r.hardwareID = hardwareID
	r.registration = &models.DisplayRegistration{
		DisplayID:    data.ID,
		HardwareID:   hardwareID,
		Name:         data.Name,
		Status:       "online",
		Slots:        slots,
		RegisteredAt: time.Now(),
	}
	r.mu.Unlock()

	r.logger.Info().Str("display_id", data.ID).Int("slots", len(slots)).Msg("Display registered successfully")

	return models.RegistrationResult{Success: true, DisplayID: data.ID, Slots: slots}
}

// UpdateSlotStatus mutates the status of one slot in place. A no-op when
// unregistered or when the slot is unknown.
func (r *RegistrarService) UpdateSlotStatus(slotID string, status models.SlotStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registration == nil {
		r.logger.Warn().Str("slot_id", slotID).Msg("Slot status update ignored, display not registered")
		return
	}
	for _, slot := range r.registration.Slots {
		if slot.ID == slotID {
			slot.Status = status
			return
		}
	}
	r.logger.Warn().Str("slot_id", slotID).Msg("Slot status update ignored, unknown slot")
}

// ClearRegistration drops the registration on stop or teardown.
func (r *RegistrarService) ClearRegistration() {
	r.mu.Lock()
	r.registration = nil
	r.mu.Unlock()
	r.logger.Info().Msg("Display registration cleared")
}

// DisplayID returns the registered display ID, or empty when unregistered.
func (r *RegistrarService) DisplayID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.registration == nil {
		return ""
	}
	return r.registration.DisplayID
}

// HardwareID returns the resolved hardware ID.
func (r *RegistrarService) HardwareID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hardwareID
}

// Snapshot returns the per-slot statuses, display ID, and hardware ID at
// this instant. ok is false when unregistered.
func (r *RegistrarService) Snapshot() ([]models.SlotStatusEntry, string, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.registration == nil {
		return nil, "", "", false
	}

	entries := make([]models.SlotStatusEntry, 0, len(r.registration.Slots))
	for _, slot := range r.registration.Slots {
		entries = append(entries, models.SlotStatusEntry{SlotID: slot.ID, Status: slot.Status})
	}
	return entries, r.registration.DisplayID, r.registration.HardwareID, true
}

// agentVersion returns the semver-validated agent version, or empty if the
// build constant is malformed.
func agentVersion(logger zerolog.Logger) string {
	v, err := semver.NewVersion(constants.AgentVersion)
	if err != nil {
		logger.Warn().Err(err).Str("version", constants.AgentVersion).Msg("Agent version is not valid semver, omitting from registration")
		return ""
	}
	return v.String()
}
