package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/adapters/registry"
	"github.com/danuharapan/senandika/server/domain/entities"
)

func newMemoryFixture(t *testing.T, opts ...MemoryOption) (*MemoryService, *fakeStore, string) {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	device, err := reg.Bind(entities.NewDevice("客厅助手"))
	require.NoError(t, err)

	store := newFakeStore()
	svc := NewMemoryService(store, reg, zap.NewNop(), opts...)
	return svc, store, device.ID
}

func TestMemoryAddPersistsBeforeReturning(t *testing.T) {
	svc, store, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, deviceID, "喜欢在晚上听轻音乐", entities.MemoryCategoryPreference)
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)

	raw, err := store.Get(ctx, "memories:"+deviceID)
	require.NoError(t, err)

	var persisted []entities.MemoryItem
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, item.ID, persisted[0].ID)
	assert.Equal(t, "喜欢在晚上听轻音乐", persisted[0].Content)
}

func TestMemoryListNewestFirst(t *testing.T) {
	svc, _, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, deviceID, "每天早上7点起床", entities.MemoryCategoryHabit)
	require.NoError(t, err)
	second, err := svc.Add(ctx, deviceID, "对花生过敏", entities.MemoryCategoryImportant)
	require.NoError(t, err)

	items, err := svc.List(ctx, deviceID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
}

func TestMemoryEditRewritesInPlace(t *testing.T) {
	svc, _, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, deviceID, "喜欢古典音乐", entities.MemoryCategoryPreference)
	require.NoError(t, err)

	require.NoError(t, svc.Edit(ctx, deviceID, item.ID, "喜欢爵士乐", entities.MemoryCategoryPreference))

	items, err := svc.List(ctx, deviceID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "喜欢爵士乐", items[0].Content)
	assert.Equal(t, item.ID, items[0].ID)
}

func TestMemoryUnknownIDErrors(t *testing.T) {
	svc, _, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	err := svc.Edit(ctx, deviceID, "no-such-id", "内容", entities.MemoryCategoryOther)
	assert.ErrorIs(t, err, ErrMemoryNotFound)

	err = svc.Remove(ctx, deviceID, "no-such-id")
	assert.ErrorIs(t, err, ErrMemoryNotFound)
}

func TestMemoryBlankContentRejectedWithoutMutation(t *testing.T) {
	svc, _, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, deviceID, "原始内容", entities.MemoryCategoryOther)
	require.NoError(t, err)

	_, err = svc.Add(ctx, deviceID, "   ", entities.MemoryCategoryOther)
	require.Error(t, err)

	err = svc.Edit(ctx, deviceID, item.ID, "  \t ", entities.MemoryCategoryOther)
	require.Error(t, err)

	items, err := svc.List(ctx, deviceID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "原始内容", items[0].Content)
}

func TestMemoryRemoveIsDurable(t *testing.T) {
	svc, store, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, deviceID, "下周三有一个重要会议", entities.MemoryCategoryImportant)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, deviceID, item.ID))

	raw, err := store.Get(ctx, "memories:"+deviceID)
	require.NoError(t, err)

	var persisted []entities.MemoryItem
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Empty(t, persisted)
}

func TestMemorySurvivesServiceRestart(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	device, err := reg.Bind(entities.NewDevice("客厅助手"))
	require.NoError(t, err)
	store := newFakeStore()
	ctx := context.Background()

	first := NewMemoryService(store, reg, zap.NewNop())
	item, err := first.Add(ctx, device.ID, "每天早上7点起床", entities.MemoryCategoryHabit)
	require.NoError(t, err)

	// A fresh service over the same store sees the persisted list.
	second := NewMemoryService(store, reg, zap.NewNop())
	items, err := second.List(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, "每天早上7点起床", items[0].Content)
	assert.Equal(t, entities.MemoryCategoryHabit, items[0].Category)
}

func TestMemoryCorruptRecordTreatedAsEmpty(t *testing.T) {
	svc, store, deviceID := newMemoryFixture(t)
	store.put("memories:"+deviceID, "{not valid json")

	items, err := svc.List(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// The store is still writable after the corrupt read.
	_, err = svc.Add(context.Background(), deviceID, "新的记忆", entities.MemoryCategoryOther)
	require.NoError(t, err)
}

func TestMemorySeedingOffByDefault(t *testing.T) {
	svc, _, deviceID := newMemoryFixture(t)

	items, err := svc.List(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemorySeedingOnFirstLoad(t *testing.T) {
	svc, store, deviceID := newMemoryFixture(t, WithSeedExamples())

	items, err := svc.List(context.Background(), deviceID)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	// Seeds are persisted so a reload sees the same entries.
	_, err = store.Get(context.Background(), "memories:"+deviceID)
	require.NoError(t, err)
}

func TestMemoryPersistFailureLeavesListUntouched(t *testing.T) {
	svc, store, deviceID := newMemoryFixture(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, deviceID, "原始内容", entities.MemoryCategoryOther)
	require.NoError(t, err)

	store.setErr = errors.New("disk full")
	_, err = svc.Add(ctx, deviceID, "写不进去", entities.MemoryCategoryOther)
	require.Error(t, err)
	require.Error(t, svc.Remove(ctx, deviceID, item.ID))

	store.setErr = nil
	items, err := svc.List(ctx, deviceID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "原始内容", items[0].Content)
}

func TestMemoryAddFailsForUnknownDevice(t *testing.T) {
	svc, _, _ := newMemoryFixture(t)

	_, err := svc.Add(context.Background(), "missing-device", "内容", entities.MemoryCategoryOther)
	require.Error(t, err)
}
