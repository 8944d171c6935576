package telemetry

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

// DefaultInterval is how often simulated readings are pushed.
const DefaultInterval = 30 * time.Second

// Simulator periodically nudges bound devices' battery readings and bumps
// their last-active timestamps, standing in for real device check-ins.
type Simulator struct {
	registry repositories.DeviceRegistry
	logger   *zap.Logger
	interval time.Duration
	rng      *rand.Rand
	stopChan chan struct{}
}

// NewSimulator creates a telemetry simulator over the registry.
func NewSimulator(registry repositories.DeviceRegistry, logger *zap.Logger) *Simulator {
	return &Simulator{
		registry: registry,
		logger:   logger,
		interval: DefaultInterval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stopChan: make(chan struct{}),
	}
}

// SetInterval overrides the tick period.
func (s *Simulator) SetInterval(d time.Duration) {
	s.interval = d
}

// Start begins the background simulation loop
func (s *Simulator) Start() {
	go s.loop()
	s.logger.Info("Telemetry simulator started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the simulator
func (s *Simulator) Stop() {
	close(s.stopChan)
	s.logger.Info("Telemetry simulator stopped")
}

func (s *Simulator) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick drains each online device's battery by a small random amount. An
// empty battery flips the device offline.
func (s *Simulator) tick() {
	for _, device := range s.registry.List() {
		if device.Status != entities.DeviceStatusOnline {
			continue
		}

		battery := device.Battery - s.rng.Intn(3)
		if battery < 0 {
			battery = 0
		}
		update := entities.TelemetryUpdate{Battery: &battery}
		if battery == 0 {
			offline := entities.DeviceStatusOffline
			update.Status = &offline
		}

		if err := s.registry.UpsertTelemetry(device.ID, update); err != nil {
			s.logger.Warn("Failed to push simulated telemetry",
				zap.String("device_id", device.ID),
				zap.Error(err))
		}
	}
}
