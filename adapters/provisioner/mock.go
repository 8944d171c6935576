package provisioner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// Simulated latencies seen by the onboarding wizard.
const (
	DefaultDiscoveryDelay = 2 * time.Second
	DefaultConnectDelay   = 3 * time.Second
)

// MockProvisioner is a placeholder implementation of the radio-side pairing
// work. It returns a fixed candidate list after a simulated scan delay and
// "provisions" credentials after a simulated join delay. Failure injection
// lets tests exercise the explicit failed sub-states.
type MockProvisioner struct {
	logger *zap.Logger

	DiscoveryDelay time.Duration
	ConnectDelay   time.Duration

	// Candidates overrides the discovered device list when non-nil.
	Candidates []entities.DiscoveredDevice

	// ConnectErr, when set, makes every Connect fail with this error.
	ConnectErr error
}

// NewMockProvisioner creates a mock provisioner with the default delays.
func NewMockProvisioner(logger *zap.Logger) *MockProvisioner {
	return &MockProvisioner{
		logger:         logger,
		DiscoveryDelay: DefaultDiscoveryDelay,
		ConnectDelay:   DefaultConnectDelay,
	}
}

// Discover returns the candidate list after the scan delay, or ctx's error
// if the scan is cancelled first.
func (p *MockProvisioner) Discover(ctx context.Context) ([]entities.DiscoveredDevice, error) {
	p.logger.Info("Starting mock device discovery",
		zap.Duration("delay", p.DiscoveryDelay))

	select {
	case <-time.After(p.DiscoveryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.Candidates != nil {
		return append([]entities.DiscoveredDevice(nil), p.Candidates...), nil
	}
	return []entities.DiscoveredDevice{
		{ID: "dev1", DisplayName: "智能助手 (AI-001)"},
		{ID: "dev2", DisplayName: "智能助手 (AI-002)"},
	}, nil
}

// Connect simulates pushing Wi-Fi credentials onto the candidate.
func (p *MockProvisioner) Connect(ctx context.Context, candidate entities.DiscoveredDevice, creds entities.WifiCredentials) error {
	p.logger.Info("Provisioning mock device",
		zap.String("candidate", candidate.ID),
		zap.String("ssid", creds.SSID))

	select {
	case <-time.After(p.ConnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	return nil
}
