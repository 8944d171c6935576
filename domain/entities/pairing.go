package entities

import (
	"errors"
	"strings"
	"time"
)

// PairingStage identifies where an onboarding session currently is.
type PairingStage string

const (
	StagePermission   PairingStage = "permission"
	StageDiscovering  PairingStage = "discovering"
	StageConnecting   PairingStage = "connecting"
	StageProvisioning PairingStage = "provisioning"
	StageComplete     PairingStage = "complete"
	StageCancelled    PairingStage = "cancelled"
)

// DiscoveredDevice is a pairing candidate found during discovery. It is not
// owned until provisioning completes.
type DiscoveredDevice struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// WifiCredentials are the network name and passphrase provisioned onto the
// selected candidate.
type WifiCredentials struct {
	SSID string `json:"ssid"`
	PSK  string `json:"psk"`
}

func (c WifiCredentials) Validate() error {
	if strings.TrimSpace(c.SSID) == "" {
		return errors.New("wifi network name is required")
	}
	if strings.TrimSpace(c.PSK) == "" {
		return errors.New("wifi password is required")
	}
	return nil
}

// PairingSession is the transient state of one onboarding flow. It is never
// persisted; cancellation or completion discards it.
type PairingSession struct {
	UserID      string             `json:"user_id"`
	Stage       PairingStage       `json:"stage"`
	Searching   bool               `json:"searching"`
	Connecting  bool               `json:"connecting"`
	Discovered  []DiscoveredDevice `json:"discovered"`
	Selected    *DiscoveredDevice  `json:"selected,omitempty"`
	Credentials WifiCredentials    `json:"-"`
	Failed      bool               `json:"failed"`
	FailureReason string           `json:"failure_reason,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
}

// NewPairingSession starts a session at the permission check stage.
func NewPairingSession(userID string) *PairingSession {
	return &PairingSession{
		UserID:    userID,
		Stage:     StagePermission,
		StartedAt: time.Now(),
	}
}

// Terminal reports whether the session can make no further transitions.
func (s *PairingSession) Terminal() bool {
	return s.Stage == StageComplete || s.Stage == StageCancelled
}

// ClearFailure resets the per-stage failure sub-state before a retry.
func (s *PairingSession) ClearFailure() {
	s.Failed = false
	s.FailureReason = ""
}
