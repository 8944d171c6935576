package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeviceStatus represents the connectivity state of a device
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// Telemetry defaults applied when a device is bound
const (
	DefaultModel    = "AI-X1000"
	DefaultFirmware = "v2.3.1"
	DefaultBattery  = 100
	DefaultVolume   = 50
)

// Device represents a bound companion device
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Model        string       `json:"model"`
	Firmware     string       `json:"firmware"`
	Battery      int          `json:"battery"`
	Volume       int          `json:"volume"`
	Status       DeviceStatus `json:"status"`
	LastActiveAt time.Time    `json:"last_active_at"`
}

// NewDevice creates a device with default telemetry. The ID is assigned
// by the registry at bind time.
func NewDevice(name string) *Device {
	return &Device{
		Name:         name,
		Model:        DefaultModel,
		Firmware:     DefaultFirmware,
		Battery:      DefaultBattery,
		Volume:       DefaultVolume,
		Status:       DeviceStatusOnline,
		LastActiveAt: time.Now(),
	}
}

func (d *Device) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("device name is required")
	}
	if d.Battery < 0 || d.Battery > 100 {
		return fmt.Errorf("battery out of range: %d", d.Battery)
	}
	if d.Volume < 0 || d.Volume > 100 {
		return fmt.Errorf("volume out of range: %d", d.Volume)
	}
	if d.Status != DeviceStatusOnline && d.Status != DeviceStatusOffline {
		return fmt.Errorf("invalid device status: %s", d.Status)
	}
	return nil
}

// TelemetryUpdate carries a partial telemetry merge. Nil fields are left
// untouched.
type TelemetryUpdate struct {
	Battery *int          `json:"battery,omitempty"`
	Volume  *int          `json:"volume,omitempty"`
	Status  *DeviceStatus `json:"status,omitempty"`
}

// Apply merges the update into the device and bumps LastActiveAt.
func (u TelemetryUpdate) Apply(d *Device) {
	if u.Battery != nil {
		d.Battery = *u.Battery
	}
	if u.Volume != nil {
		d.Volume = *u.Volume
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	d.LastActiveAt = time.Now()
}
