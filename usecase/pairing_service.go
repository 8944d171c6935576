package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/domain/repositories"
)

// Pairing flow errors
var (
	ErrPairingInProgress = errors.New("a pairing session is already in progress")
	ErrNoPairingSession  = errors.New("no active pairing session")
	ErrBusyStage         = errors.New("stage operation already in progress")
)

// DefaultConnectTimeout bounds the Wi-Fi provisioning step. Exceeding it
// surfaces an explicit failed sub-state instead of hanging.
const DefaultConnectTimeout = 10 * time.Second

// FlowError is a rejected state transition. The UI is expected to prevent
// these, but rejecting them is a contract of the state machine itself.
type FlowError struct {
	Stage entities.PairingStage
	Op    string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("operation %q is not valid in stage %q", e.Op, e.Stage)
}

// PairingService drives a device from "permissions not granted" to "bound
// and named". At most one session is active at a time; stage transitions are
// strictly sequential, and cancellation discards in-flight work without
// touching the registry or the key-value store.
type PairingService struct {
	registry       repositories.DeviceRegistry
	provisioner    repositories.Provisioner
	connectTimeout time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	session *entities.PairingSession
	// generation invalidates async completions that finish after a cancel,
	// back-transition or search restart.
	generation uint64
	cancelWork context.CancelFunc
}

// NewPairingService creates the pairing state machine.
func NewPairingService(registry repositories.DeviceRegistry, provisioner repositories.Provisioner, logger *zap.Logger) *PairingService {
	return &PairingService{
		registry:       registry,
		provisioner:    provisioner,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger,
	}
}

// SetConnectTimeout overrides the provisioning timeout.
func (s *PairingService) SetConnectTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectTimeout = d
}

// Start opens a new pairing session at the permission check. A second
// concurrent flow is rejected explicitly; the caller must cancel first.
func (s *PairingService) Start(userID string) (*entities.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !s.session.Terminal() {
		return nil, ErrPairingInProgress
	}

	s.session = entities.NewPairingSession(userID)
	s.logger.Info("Pairing session started", zap.String("user_id", userID))
	return s.snapshotLocked(), nil
}

// ConfirmPermissions records the user's assertion that short-range radio and
// location access are granted. The system does not verify the assertion.
func (s *PairingService) ConfirmPermissions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}
	if s.session.Stage != entities.StagePermission {
		return &FlowError{Stage: s.session.Stage, Op: "confirm_permissions"}
	}

	s.session.Stage = entities.StageDiscovering
	return nil
}

// StartSearch begins (or restarts) device discovery. Discovery is
// asynchronous; the searching flag is observable through Snapshot until the
// scan finishes. Re-invoking restarts the candidate list.
func (s *PairingService) StartSearch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}
	if s.session.Stage != entities.StageDiscovering {
		return &FlowError{Stage: s.session.Stage, Op: "start_search"}
	}

	s.invalidateWorkLocked()
	s.session.Searching = true
	s.session.Discovered = nil
	s.session.Selected = nil
	s.session.ClearFailure()

	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelWork = cancel

	go func() {
		candidates, err := s.provisioner.Discover(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation || s.session == nil || s.session.Stage != entities.StageDiscovering {
			// Stale completion: the user cancelled, went back, or restarted.
			return
		}

		s.session.Searching = false
		if err != nil {
			s.session.Failed = true
			s.session.FailureReason = "设备搜索失败，请重试"
			s.logger.Warn("Device discovery failed", zap.Error(err))
			return
		}
		s.session.Discovered = candidates
		s.logger.Info("Device discovery finished", zap.Int("count", len(candidates)))
	}()

	return nil
}

// SelectDevice picks one discovered candidate and moves to the Wi-Fi step.
func (s *PairingService) SelectDevice(candidateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}
	if s.session.Stage != entities.StageDiscovering {
		return &FlowError{Stage: s.session.Stage, Op: "select_device"}
	}

	for _, candidate := range s.session.Discovered {
		if candidate.ID == candidateID {
			selected := candidate
			s.invalidateWorkLocked()
			s.session.Searching = false
			s.session.Selected = &selected
			s.session.Stage = entities.StageConnecting
			s.session.ClearFailure()
			return nil
		}
	}
	return fmt.Errorf("unknown pairing candidate: %s", candidateID)
}

// Connect provisions Wi-Fi credentials onto the selected candidate. The
// network step is asynchronous with a timeout; failure lands in an explicit
// failed sub-state and can be retried in place.
func (s *PairingService) Connect(creds entities.WifiCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}
	if s.session.Stage != entities.StageConnecting {
		return &FlowError{Stage: s.session.Stage, Op: "connect"}
	}
	if s.session.Connecting {
		return ErrBusyStage
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	s.invalidateWorkLocked()
	s.session.Connecting = true
	s.session.Credentials = creds
	s.session.ClearFailure()
	candidate := *s.session.Selected

	gen := s.generation
	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	s.cancelWork = cancel

	go func() {
		err := s.provisioner.Connect(ctx, candidate, creds)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation || s.session == nil || s.session.Stage != entities.StageConnecting {
			return
		}

		s.session.Connecting = false
		if err != nil {
			s.session.Failed = true
			s.session.FailureReason = "WiFi连接失败，请检查网络后重试"
			s.logger.Warn("Wi-Fi provisioning failed",
				zap.String("candidate", candidate.ID),
				zap.Error(err))
			return
		}
		s.session.Stage = entities.StageProvisioning
		s.logger.Info("Device connected to Wi-Fi",
			zap.String("candidate", candidate.ID),
			zap.String("ssid", creds.SSID))
	}()

	return nil
}

// Provision names the device and binds it into the registry with default
// telemetry. This is the flow's one irreversible side effect.
func (s *PairingService) Provision(name string) (*entities.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return nil, ErrNoPairingSession
	}
	if s.session.Stage != entities.StageProvisioning {
		return nil, &FlowError{Stage: s.session.Stage, Op: "provision"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("device name is required")
	}

	device, err := s.registry.Bind(entities.NewDevice(name))
	if err != nil {
		return nil, fmt.Errorf("bind device: %w", err)
	}

	s.session.Stage = entities.StageComplete
	s.logger.Info("Pairing complete",
		zap.String("device_id", device.ID),
		zap.String("name", device.Name))
	return device, nil
}

// Back returns to the previous stage. Allowed from discovering (to the
// permission check) and connecting (to discovery); in-flight work for the
// abandoned stage is discarded.
func (s *PairingService) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}

	switch s.session.Stage {
	case entities.StageDiscovering:
		s.invalidateWorkLocked()
		s.session.Stage = entities.StagePermission
		s.session.Searching = false
		s.session.Discovered = nil
		s.session.Selected = nil
		s.session.ClearFailure()
		return nil
	case entities.StageConnecting:
		s.invalidateWorkLocked()
		s.session.Stage = entities.StageDiscovering
		s.session.Connecting = false
		s.session.Selected = nil
		s.session.Credentials = entities.WifiCredentials{}
		s.session.ClearFailure()
		return nil
	default:
		return &FlowError{Stage: s.session.Stage, Op: "back"}
	}
}

// Cancel aborts the flow from any non-terminal stage, discarding the session
// and any in-flight discovery or connection work. The registry and the
// key-value store are left untouched.
func (s *PairingService) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Terminal() {
		return ErrNoPairingSession
	}

	s.invalidateWorkLocked()
	stage := s.session.Stage
	s.session = nil
	s.logger.Info("Pairing session cancelled", zap.String("stage", string(stage)))
	return nil
}

// Snapshot returns a copy of the active session for the UI.
func (s *PairingService) Snapshot() (*entities.PairingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoPairingSession
	}
	return s.snapshotLocked(), nil
}

func (s *PairingService) snapshotLocked() *entities.PairingSession {
	snapshot := *s.session
	snapshot.Discovered = append([]entities.DiscoveredDevice(nil), s.session.Discovered...)
	if s.session.Selected != nil {
		selected := *s.session.Selected
		snapshot.Selected = &selected
	}
	return &snapshot
}

// invalidateWorkLocked cancels any in-flight async operation and bumps the
// generation so its late completion is discarded.
func (s *PairingService) invalidateWorkLocked() {
	s.generation++
	if s.cancelWork != nil {
		s.cancelWork()
		s.cancelWork = nil
	}
}
