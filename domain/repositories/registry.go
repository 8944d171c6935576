package repositories

import "github.com/danuharapan/senandika/server/domain/entities"

// DeviceRegistry is the in-memory catalog of bound devices and their live
// telemetry. It is rebuilt each process; the device id is the join key for
// all persisted device-scoped data.
type DeviceRegistry interface {
	// Bind registers a new device and assigns its id. Only the pairing flow
	// calls this.
	Bind(device *entities.Device) (*entities.Device, error)
	List() []*entities.Device
	Get(id string) (*entities.Device, error)
	UpsertTelemetry(id string, update entities.TelemetryUpdate) error
	Rename(id string, name string) error
	SetVolume(id string, volume int) error
	// Remove unbinds the device. Irreversible: re-binding yields a new id.
	Remove(id string) error
}
