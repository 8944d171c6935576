package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/danuharapan/senandika/server/domain/entities"
)

func TestMessageValidator_ValidateSendMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name: "valid send_message",
			message: `{
				"type": "send_message",
				"device_id": "dev-1",
				"text": "你好"
			}`,
			wantErr: false,
		},
		{
			name: "missing device_id",
			message: `{
				"type": "send_message",
				"text": "你好"
			}`,
			wantErr: true,
		},
		{
			name: "missing text",
			message: `{
				"type": "send_message",
				"device_id": "dev-1"
			}`,
			wantErr: true,
		},
		{
			name:    "not json",
			message: `{nope`,
			wantErr: true,
		},
		{
			name: "unsupported type",
			message: `{
				"type": "audio_chunk"
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ValidateSubscribe(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{"type": "subscribe", "device_id": "dev-7"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	msg, ok := parsed.(*SubscribeMessage)
	if !ok {
		t.Fatalf("expected *SubscribeMessage, got %T", parsed)
	}
	if msg.DeviceID != "dev-7" {
		t.Errorf("DeviceID = %q, want dev-7", msg.DeviceID)
	}

	// Subscribing to all devices is allowed.
	if _, err := validator.ValidateMessage([]byte(`{"type": "subscribe"}`)); err != nil {
		t.Errorf("empty subscribe should be valid, got %v", err)
	}
}

func TestCreateTurnMessage(t *testing.T) {
	turn := entities.ConversationTurn{
		ID:     "turn-1",
		Sender: entities.TurnSenderAgent,
		Text:   "你好！我是你的智能助手",
		SentAt: time.Now(),
	}

	msg := CreateTurnMessage("dev-1", turn)
	if msg.Type != MessageTypeTurn {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeTurn)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal turn message: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal turn message: %v", err)
	}
	if decoded["device_id"] != "dev-1" {
		t.Errorf("device_id = %v, want dev-1", decoded["device_id"])
	}
}
