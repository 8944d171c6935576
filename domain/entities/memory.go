package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MemoryCategory classifies a user-authored memory.
type MemoryCategory string

const (
	MemoryCategoryPreference MemoryCategory = "preference"
	MemoryCategoryHabit      MemoryCategory = "habit"
	MemoryCategoryImportant  MemoryCategory = "important"
	MemoryCategoryOther      MemoryCategory = "other"
)

func (c MemoryCategory) Valid() bool {
	switch c {
	case MemoryCategoryPreference, MemoryCategoryHabit, MemoryCategoryImportant, MemoryCategoryOther:
		return true
	}
	return false
}

// MemoryItem is a durable note scoped to one device, independent of the live
// transcript.
type MemoryItem struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Content   string         `json:"content"`
	Category  MemoryCategory `json:"category"`
	CreatedAt time.Time      `json:"created_at"`
}

func (m *MemoryItem) Validate() error {
	if m.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("memory content is required")
	}
	if !m.Category.Valid() {
		return fmt.Errorf("invalid memory category: %s", m.Category)
	}
	return nil
}
