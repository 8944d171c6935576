package repositories

import (
	"context"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// Provisioner abstracts the radio-side work of onboarding: finding nearby
// candidates and pushing Wi-Fi credentials onto one of them. The mock
// adapter simulates both with delays; a real implementation can be
// substituted without touching the state machine.
type Provisioner interface {
	// Discover scans for pairing candidates. Blocks until the scan finishes
	// or ctx is done.
	Discover(ctx context.Context) ([]entities.DiscoveredDevice, error)
	// Connect provisions credentials onto the candidate. Blocks until the
	// device joins the network or ctx is done.
	Connect(ctx context.Context, candidate entities.DiscoveredDevice, creds entities.WifiCredentials) error
}
