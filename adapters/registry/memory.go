package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// ErrDeviceNotFound is returned for lookups and mutations of unknown ids.
var ErrDeviceNotFound = errors.New("device not found")

// MemoryRegistry is the in-memory implementation of DeviceRegistry. The
// registry is rebuilt from telemetry each process; only the device id joins
// it to persisted data, so nothing here touches the key-value store.
type MemoryRegistry struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device
	order   []string // bind order for List
}

// NewMemoryRegistry creates an empty device registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		devices: make(map[string]*entities.Device),
	}
}

// Bind registers a device and assigns a fresh id. Ids are random UUIDs and
// are never reused after Remove.
func (r *MemoryRegistry) Bind(device *entities.Device) (*entities.Device, error) {
	if device == nil {
		return nil, errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deviceCopy := *device
	deviceCopy.ID = uuid.New().String()
	r.devices[deviceCopy.ID] = &deviceCopy
	r.order = append(r.order, deviceCopy.ID)

	result := deviceCopy
	return &result, nil
}

// List returns the bound devices in bind order.
func (r *MemoryRegistry) List() []*entities.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Device, 0, len(r.order))
	for _, id := range r.order {
		if device, ok := r.devices[id]; ok {
			deviceCopy := *device
			result = append(result, &deviceCopy)
		}
	}
	return result
}

// Get returns a copy of the device to prevent external modification.
func (r *MemoryRegistry) Get(id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	deviceCopy := *device
	return &deviceCopy, nil
}

// UpsertTelemetry merges battery/volume/status into the device. Last write
// wins; there is a single logical owner per device so call order is the only
// ordering that matters.
func (r *MemoryRegistry) UpsertTelemetry(id string, update entities.TelemetryUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	update.Apply(device)
	return nil
}

// Rename sets the user-facing device name.
func (r *MemoryRegistry) Rename(id string, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("device name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	device.Name = name
	return nil
}

// SetVolume sets the playback volume, 0 to 100.
func (r *MemoryRegistry) SetVolume(id string, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume out of range: %d", volume)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	device.Volume = volume
	return nil
}

// Remove unbinds the device. The id stays consumed; a re-bound device gets a
// new one.
func (r *MemoryRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
