package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

const profileKeyPrefix = "profile:"

// ProfileService persists the free-form personal information record kept
// per device. Saving always overwrites the whole record.
type ProfileService struct {
	store  repositories.KeyValueStore
	logger *zap.Logger
}

// NewProfileService creates the profile store.
func NewProfileService(store repositories.KeyValueStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// Get returns the device's personal info record. A missing or corrupt
// record yields an empty record rather than an error, so the edit form
// always has something to render.
func (s *ProfileService) Get(ctx context.Context, deviceID string) (entities.PersonalInfo, error) {
	empty := entities.PersonalInfo{DeviceID: deviceID}

	raw, err := s.store.Get(ctx, profileKeyPrefix+deviceID)
	if errors.Is(err, repositories.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("load profile for %s: %w", deviceID, err)
	}

	var info entities.PersonalInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.logger.Warn("Discarding corrupt profile record",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return empty, nil
	}
	info.DeviceID = deviceID
	return info, nil
}

// Save overwrites the device's record with the submitted fields.
func (s *ProfileService) Save(ctx context.Context, deviceID string, info entities.PersonalInfo) error {
	info.DeviceID = deviceID

	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode profile for %s: %w", deviceID, err)
	}
	if err := s.store.Set(ctx, profileKeyPrefix+deviceID, string(payload)); err != nil {
		return fmt.Errorf("persist profile for %s: %w", deviceID, err)
	}
	return nil
}
