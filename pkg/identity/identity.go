package identity

import (
	"os"

	"github.com/google/uuid"

	"github.com/o4o-platform/signage-agent/pkg/file"
)

// Identity holds the device's hardware identifier and display metadata.
type Identity struct {
	HardwareID string `json:"hardware_id,omitempty"`
	Name       string `json:"device_name,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	ResolveHardwareID(configured string) (string, error)
	GetHardwareID() string
	GetDeviceIdentity() *Identity
	SaveHardwareID(hardwareID string) error
}

// DeviceInfo manages the device identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) DeviceInfoInterface {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       Identity{},
	}
}

// LoadDeviceInfo reads the device information from the file and populates the Identity field.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil {
		if os.IsNotExist(err) {
			// File does not exist, initialize with default empty values
			d.Identity = Identity{}
			return nil
		}
		return err
	}

	return nil
}

// ResolveHardwareID returns the effective hardware ID in precedence order:
// configured value, previously persisted value, freshly generated UUID
// (persisted for stability across restarts).
func (d *DeviceInfo) ResolveHardwareID(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if d.Identity.HardwareID != "" {
		return d.Identity.HardwareID, nil
	}

	generated := "hw-" + uuid.New().String()
	if err := d.SaveHardwareID(generated); err != nil {
		return "", err
	}
	return generated, nil
}

// GetDeviceIdentity returns the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetHardwareID returns the current hardware ID.
func (d *DeviceInfo) GetHardwareID() string {
	return d.Identity.HardwareID
}

// SaveHardwareID updates the hardware ID in the Identity field and writes it back to the file.
func (d *DeviceInfo) SaveHardwareID(hardwareID string) error {
	d.Identity.HardwareID = hardwareID
	return d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity)
}
