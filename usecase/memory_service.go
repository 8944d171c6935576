package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

// ErrMemoryNotFound is surfaced for edits and removals of unknown ids.
var ErrMemoryNotFound = errors.New("memory not found")

const memoryKeyPrefix = "memories:"

// MemoryOption configures the memory service.
type MemoryOption func(*MemoryService)

// WithSeedExamples seeds a device's list with example entries on first load.
// Demo convenience only; correctness never depends on it.
func WithSeedExamples() MemoryOption {
	return func(s *MemoryService) {
		s.seedExamples = true
	}
}

// MemoryService is the per-device store of durable user-authored notes.
// The full newest-first list for a device is persisted to the key-value
// store before any mutating call returns, so an acknowledged mutation
// survives a crash immediately after it.
type MemoryService struct {
	store        repositories.KeyValueStore
	registry     repositories.DeviceRegistry
	logger       *zap.Logger
	seedExamples bool

	mu      sync.Mutex
	lists   map[string][]entities.MemoryItem
	loaded  map[string]bool
	entropy *rand.Rand
}

// NewMemoryService creates the memory store.
func NewMemoryService(store repositories.KeyValueStore, registry repositories.DeviceRegistry, logger *zap.Logger, opts ...MemoryOption) *MemoryService {
	s := &MemoryService{
		store:   store,
		registry: registry,
		logger:  logger,
		lists:   make(map[string][]entities.MemoryItem),
		loaded:  make(map[string]bool),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates a memory at the head of the device's list and persists it.
func (s *MemoryService) Add(ctx context.Context, deviceID, content string, category entities.MemoryCategory) (*entities.MemoryItem, error) {
	if _, err := s.registry.Get(deviceID); err != nil {
		return nil, fmt.Errorf("memory for unknown device %s: %w", deviceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, deviceID); err != nil {
		return nil, err
	}

	item := entities.MemoryItem{
		ID:        s.newIDLocked(),
		DeviceID:  deviceID,
		Content:   content,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	updated := append([]entities.MemoryItem{item}, s.lists[deviceID]...)
	if err := s.persistLocked(ctx, deviceID, updated); err != nil {
		return nil, err
	}
	s.lists[deviceID] = updated

	result := item
	return &result, nil
}

// Edit rewrites a memory's content and category in place and persists the
// list. Blank content is rejected without mutating anything.
func (s *MemoryService) Edit(ctx context.Context, deviceID, id, content string, category entities.MemoryCategory) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("memory content is required")
	}
	if !category.Valid() {
		return fmt.Errorf("invalid memory category: %s", category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, deviceID); err != nil {
		return err
	}

	current := s.lists[deviceID]
	for i, item := range current {
		if item.ID != id {
			continue
		}
		updated := append([]entities.MemoryItem(nil), current...)
		updated[i].Content = content
		updated[i].Category = category
		if err := s.persistLocked(ctx, deviceID, updated); err != nil {
			return err
		}
		s.lists[deviceID] = updated
		return nil
	}
	return ErrMemoryNotFound
}

// Remove deletes a memory and persists the shrunken list, so the deletion
// itself is durable.
func (s *MemoryService) Remove(ctx context.Context, deviceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, deviceID); err != nil {
		return err
	}

	current := s.lists[deviceID]
	for i, item := range current {
		if item.ID != id {
			continue
		}
		updated := append(append([]entities.MemoryItem(nil), current[:i]...), current[i+1:]...)
		if err := s.persistLocked(ctx, deviceID, updated); err != nil {
			return err
		}
		s.lists[deviceID] = updated
		return nil
	}
	return ErrMemoryNotFound
}

// List returns the device's memories, most recently created first.
func (s *MemoryService) List(ctx context.Context, deviceID string) ([]entities.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, deviceID); err != nil {
		return nil, err
	}
	return append([]entities.MemoryItem(nil), s.lists[deviceID]...), nil
}

// loadLocked populates the in-memory list from storage on first access. A
// corrupt stored record is logged and treated as absent rather than
// crashing the reader.
func (s *MemoryService) loadLocked(ctx context.Context, deviceID string) error {
	if s.loaded[deviceID] {
		return nil
	}

	raw, err := s.store.Get(ctx, memoryKeyPrefix+deviceID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		if s.seedExamples {
			if err := s.seedLocked(ctx, deviceID); err != nil {
				return err
			}
		}
	case err != nil:
		return fmt.Errorf("load memories for %s: %w", deviceID, err)
	default:
		var items []entities.MemoryItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			s.logger.Warn("Discarding corrupt memory record",
				zap.String("device_id", deviceID),
				zap.Error(err))
		} else {
			s.lists[deviceID] = items
		}
	}

	s.loaded[deviceID] = true
	return nil
}

func (s *MemoryService) persistLocked(ctx context.Context, deviceID string, items []entities.MemoryItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode memories for %s: %w", deviceID, err)
	}
	if err := s.store.Set(ctx, memoryKeyPrefix+deviceID, string(payload)); err != nil {
		return fmt.Errorf("persist memories for %s: %w", deviceID, err)
	}
	return nil
}

func (s *MemoryService) seedLocked(ctx context.Context, deviceID string) error {
	now := time.Now()
	seeds := []entities.MemoryItem{
		{ID: s.newIDLocked(), DeviceID: deviceID, Content: "喜欢在晚上听轻音乐", Category: entities.MemoryCategoryPreference, CreatedAt: now},
		{ID: s.newIDLocked(), DeviceID: deviceID, Content: "每天早上7点起床", Category: entities.MemoryCategoryHabit, CreatedAt: now},
		{ID: s.newIDLocked(), DeviceID: deviceID, Content: "对花生过敏", Category: entities.MemoryCategoryImportant, CreatedAt: now},
	}
	if err := s.persistLocked(ctx, deviceID, seeds); err != nil {
		return err
	}
	s.lists[deviceID] = seeds
	return nil
}

func (s *MemoryService) newIDLocked() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}
