package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuharapan/senandika/server/domain/entities"
)

func TestMemoryRegistry_BindAssignsID(t *testing.T) {
	reg := NewMemoryRegistry()

	bound, err := reg.Bind(entities.NewDevice("客厅助手"))
	require.NoError(t, err)
	assert.NotEmpty(t, bound.ID)
	assert.Equal(t, "客厅助手", bound.Name)
	assert.Equal(t, entities.DefaultBattery, bound.Battery)
	assert.Equal(t, entities.DeviceStatusOnline, bound.Status)
}

func TestMemoryRegistry_BindRejectsInvalid(t *testing.T) {
	reg := NewMemoryRegistry()

	_, err := reg.Bind(entities.NewDevice("   "))
	assert.Error(t, err)
	assert.Empty(t, reg.List())
}

func TestMemoryRegistry_ListBindOrder(t *testing.T) {
	reg := NewMemoryRegistry()

	first, err := reg.Bind(entities.NewDevice("first"))
	require.NoError(t, err)
	second, err := reg.Bind(entities.NewDevice("second"))
	require.NoError(t, err)

	devices := reg.List()
	require.Len(t, devices, 2)
	assert.Equal(t, first.ID, devices[0].ID)
	assert.Equal(t, second.ID, devices[1].ID)
}

func TestMemoryRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewMemoryRegistry()
	bound, err := reg.Bind(entities.NewDevice("study"))
	require.NoError(t, err)

	got, err := reg.Get(bound.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := reg.Get(bound.ID)
	require.NoError(t, err)
	assert.Equal(t, "study", again.Name)
}

func TestMemoryRegistry_UpsertTelemetry(t *testing.T) {
	reg := NewMemoryRegistry()
	bound, err := reg.Bind(entities.NewDevice("study"))
	require.NoError(t, err)

	battery := 17
	status := entities.DeviceStatusOffline
	require.NoError(t, reg.UpsertTelemetry(bound.ID, entities.TelemetryUpdate{Battery: &battery, Status: &status}))

	got, err := reg.Get(bound.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, got.Battery)
	assert.Equal(t, entities.DeviceStatusOffline, got.Status)
	assert.Equal(t, entities.DefaultVolume, got.Volume)

	assert.ErrorIs(t, reg.UpsertTelemetry("missing", entities.TelemetryUpdate{}), ErrDeviceNotFound)
}

func TestMemoryRegistry_RenameAndVolume(t *testing.T) {
	reg := NewMemoryRegistry()
	bound, err := reg.Bind(entities.NewDevice("study"))
	require.NoError(t, err)

	require.NoError(t, reg.Rename(bound.ID, "书房助手"))
	require.NoError(t, reg.SetVolume(bound.ID, 80))

	got, err := reg.Get(bound.ID)
	require.NoError(t, err)
	assert.Equal(t, "书房助手", got.Name)
	assert.Equal(t, 80, got.Volume)

	assert.Error(t, reg.Rename(bound.ID, "  "))
	assert.Error(t, reg.SetVolume(bound.ID, 101))
}

func TestMemoryRegistry_RemoveNeverReusesID(t *testing.T) {
	reg := NewMemoryRegistry()
	bound, err := reg.Bind(entities.NewDevice("study"))
	require.NoError(t, err)

	require.NoError(t, reg.Remove(bound.ID))
	_, err = reg.Get(bound.ID)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, reg.Remove(bound.ID), ErrDeviceNotFound)

	rebound, err := reg.Bind(entities.NewDevice("study"))
	require.NoError(t, err)
	assert.NotEqual(t, bound.ID, rebound.ID)
}
