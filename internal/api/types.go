package api

import (
	"time"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// RenameDeviceRequest renames a bound device
type RenameDeviceRequest struct {
	Name string `json:"name" validate:"required"`
}

// VolumeRequest sets a bound device's volume
type VolumeRequest struct {
	Volume int `json:"volume" validate:"min=0,max=100"`
}

// StartPairingRequest opens an onboarding session
type StartPairingRequest struct {
	UserID string `json:"user_id"`
}

// SelectCandidateRequest picks a discovered pairing candidate
type SelectCandidateRequest struct {
	CandidateID string `json:"candidate_id" validate:"required"`
}

// ConnectRequest carries the Wi-Fi credentials for provisioning
type ConnectRequest struct {
	SSID string `json:"ssid" validate:"required"`
	PSK  string `json:"psk" validate:"required"`
}

// ProvisionRequest finishes pairing by naming the device
type ProvisionRequest struct {
	Name string `json:"name" validate:"required"`
}

// SelectRoleRequest switches the conversational role
type SelectRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

// SelectModelRequest switches the bound language model
type SelectModelRequest struct {
	ModelID string `json:"model_id" validate:"required"`
}

// SelectVoiceRequest switches the bound voice
type SelectVoiceRequest struct {
	VoiceID string `json:"voice_id" validate:"required"`
}

// ChatRequest submits one user turn
type ChatRequest struct {
	Text string `json:"text" validate:"required"`
}

// MemoryRequest creates or edits a memory entry
type MemoryRequest struct {
	Content  string                  `json:"content" validate:"required"`
	Category entities.MemoryCategory `json:"category" validate:"required"`
}

// ThemeRequest sets the UI theme
type ThemeRequest struct {
	Theme entities.ThemeMode `json:"theme" validate:"required"`
}

// LoginRequest signs an app user in
type LoginRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Name   string `json:"name" validate:"required"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// LoginResponse returns the session token alongside the stored user
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *entities.User `json:"user"`
}

// PersonaCatalogResponse lists the selectable roles, models and voices
type PersonaCatalogResponse struct {
	Roles  []entities.Role    `json:"roles"`
	Models []entities.AIModel `json:"models"`
	Voices []entities.Voice   `json:"voices"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
