package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeSendMessage MessageType = "send_message"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeTurn        MessageType = "turn"
	MessageTypeError       MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// SubscribeMessage selects which device's transcript the client receives.
// An empty device_id subscribes to every device.
type SubscribeMessage struct {
	BaseMessage
	DeviceID string `json:"device_id"`
}

// SendMessageMessage submits a user turn over the socket instead of the
// REST endpoint.
type SendMessageMessage struct {
	BaseMessage
	DeviceID string `json:"device_id"`
	Text     string `json:"text"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// TurnMessage pushes one appended conversation turn to the client.
type TurnMessage struct {
	BaseMessage
	DeviceID string                    `json:"device_id"`
	Turn     entities.ConversationTurn `json:"turn"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for incoming WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSubscribe:
		var msg SubscribeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid subscribe message: %w", err)
		}
		return &msg, nil

	case MessageTypeSendMessage:
		var msg SendMessageMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid send_message message: %w", err)
		}
		if msg.DeviceID == "" {
			return nil, fmt.Errorf("device_id is required")
		}
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateTurnMessage wraps an appended turn for push delivery
func CreateTurnMessage(deviceID string, turn entities.ConversationTurn) *TurnMessage {
	return &TurnMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTurn,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		DeviceID: deviceID,
		Turn:     turn,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
