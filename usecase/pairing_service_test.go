package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/adapters/provisioner"
	"github.com/danuharapan/senandika/server/adapters/registry"
	"github.com/danuharapan/senandika/server/domain/entities"
)

const waitTick = 5 * time.Millisecond

func newPairingFixture(t *testing.T) (*PairingService, *registry.MemoryRegistry, *provisioner.MockProvisioner, *fakeStore) {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	mock := provisioner.NewMockProvisioner(zap.NewNop())
	mock.DiscoveryDelay = 10 * time.Millisecond
	mock.ConnectDelay = 10 * time.Millisecond

	svc := NewPairingService(reg, mock, zap.NewNop())
	store := newFakeStore()
	return svc, reg, mock, store
}

func waitForStage(t *testing.T, svc *PairingService, stage entities.PairingStage) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := svc.Snapshot()
		return err == nil && s.Stage == stage
	}, time.Second, waitTick, "never reached stage %s", stage)
}

func waitForCandidates(t *testing.T, svc *PairingService) *entities.PairingSession {
	t.Helper()
	var snapshot *entities.PairingSession
	require.Eventually(t, func() bool {
		s, err := svc.Snapshot()
		if err != nil || s.Searching || len(s.Discovered) == 0 {
			return false
		}
		snapshot = s
		return true
	}, time.Second, waitTick, "discovery never produced candidates")
	return snapshot
}

func TestPairingHappyPath(t *testing.T) {
	svc, reg, _, store := newPairingFixture(t)

	session, err := svc.Start("user-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StagePermission, session.Stage)

	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())

	snapshot := waitForCandidates(t, svc)
	require.Len(t, snapshot.Discovered, 2)
	assert.Equal(t, "智能助手 (AI-001)", snapshot.Discovered[0].DisplayName)

	require.NoError(t, svc.SelectDevice("dev1"))
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))
	waitForStage(t, svc, entities.StageProvisioning)

	device, err := svc.Provision("客厅助手")
	require.NoError(t, err)
	assert.Equal(t, "客厅助手", device.Name)
	assert.Equal(t, entities.DefaultModel, device.Model)
	assert.Equal(t, entities.DefaultFirmware, device.Firmware)
	assert.Equal(t, entities.DefaultBattery, device.Battery)
	assert.Equal(t, entities.DefaultVolume, device.Volume)
	assert.Equal(t, entities.DeviceStatusOnline, device.Status)

	listed := reg.List()
	require.Len(t, listed, 1)
	assert.Equal(t, device.ID, listed[0].ID)

	snapshot, err = svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, entities.StageComplete, snapshot.Stage)
	assert.Empty(t, store.snapshot(), "pairing itself writes nothing to the key-value store")
}

func TestPairingCancelLeavesNoTrace(t *testing.T) {
	svc, reg, _, store := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev1"))
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))

	require.NoError(t, svc.Cancel())

	assert.Empty(t, reg.List())
	assert.Empty(t, store.snapshot())

	_, err = svc.Snapshot()
	assert.ErrorIs(t, err, ErrNoPairingSession)
}

func TestPairingSecondConcurrentFlowRejected(t *testing.T) {
	svc, _, _, _ := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)

	_, err = svc.Start("user-2")
	assert.ErrorIs(t, err, ErrPairingInProgress)

	// After cancel a new flow can start.
	require.NoError(t, svc.Cancel())
	_, err = svc.Start("user-2")
	require.NoError(t, err)
}

func TestPairingOutOfOrderOperationsRejected(t *testing.T) {
	svc, _, _, _ := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)

	var flowErr *FlowError
	require.ErrorAs(t, svc.StartSearch(), &flowErr)
	assert.Equal(t, entities.StagePermission, flowErr.Stage)

	require.ErrorAs(t, svc.Connect(entities.WifiCredentials{SSID: "x", PSK: "y"}), &flowErr)
	_, err = svc.Provision("名字")
	require.ErrorAs(t, err, &flowErr)
}

func TestPairingConnectFailureIsExplicitAndRetryable(t *testing.T) {
	svc, reg, mock, _ := newPairingFixture(t)
	mock.ConnectErr = errors.New("join rejected")

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev2"))
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))

	require.Eventually(t, func() bool {
		s, err := svc.Snapshot()
		return err == nil && s.Failed
	}, time.Second, waitTick)

	snapshot, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, entities.StageConnecting, snapshot.Stage)
	assert.Equal(t, "WiFi连接失败，请检查网络后重试", snapshot.FailureReason)
	assert.Empty(t, reg.List())

	// Retry in place after clearing the fault.
	mock.ConnectErr = nil
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))
	waitForStage(t, svc, entities.StageProvisioning)
}

func TestPairingConnectTimeout(t *testing.T) {
	svc, _, mock, _ := newPairingFixture(t)
	mock.ConnectDelay = time.Second
	svc.SetConnectTimeout(20 * time.Millisecond)

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev1"))
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))

	require.Eventually(t, func() bool {
		s, err := svc.Snapshot()
		return err == nil && s.Failed && !s.Connecting
	}, time.Second, waitTick)
}

func TestPairingSearchRestartDiscardsStaleResults(t *testing.T) {
	svc, _, mock, _ := newPairingFixture(t)
	mock.DiscoveryDelay = 50 * time.Millisecond

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())

	// Restart while the first scan is still in flight.
	mock.DiscoveryDelay = 10 * time.Millisecond
	mock.Candidates = []entities.DiscoveredDevice{{ID: "dev9", DisplayName: "智能助手 (AI-009)"}}
	require.NoError(t, svc.StartSearch())

	snapshot := waitForCandidates(t, svc)
	require.Len(t, snapshot.Discovered, 1)
	assert.Equal(t, "dev9", snapshot.Discovered[0].ID)

	// The slower first scan must not overwrite the restarted result.
	time.Sleep(80 * time.Millisecond)
	snapshot, err = svc.Snapshot()
	require.NoError(t, err)
	require.Len(t, snapshot.Discovered, 1)
	assert.Equal(t, "dev9", snapshot.Discovered[0].ID)
}

func TestPairingBackNavigation(t *testing.T) {
	svc, _, _, _ := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev1"))

	require.NoError(t, svc.Back())
	snapshot, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, entities.StageDiscovering, snapshot.Stage)
	assert.Nil(t, snapshot.Selected)

	require.NoError(t, svc.Back())
	snapshot, err = svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, entities.StagePermission, snapshot.Stage)
}

func TestPairingCredentialValidation(t *testing.T) {
	svc, _, _, _ := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev1"))

	require.Error(t, svc.Connect(entities.WifiCredentials{SSID: "", PSK: "pw12345"}))
	require.Error(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: ""}))
}

func TestPairingProvisionRequiresName(t *testing.T) {
	svc, reg, _, _ := newPairingFixture(t)

	_, err := svc.Start("user-1")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPermissions())
	require.NoError(t, svc.StartSearch())
	waitForCandidates(t, svc)
	require.NoError(t, svc.SelectDevice("dev1"))
	require.NoError(t, svc.Connect(entities.WifiCredentials{SSID: "HomeNet", PSK: "pw12345"}))
	waitForStage(t, svc, entities.StageProvisioning)

	_, err = svc.Provision("   ")
	require.Error(t, err)
	assert.Empty(t, reg.List())

	_, err = svc.Provision("书房助手")
	require.NoError(t, err)
}
