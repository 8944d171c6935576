package entities

import "time"

// Role is a conversational persona. The catalog is closed: the responder
// reads opening and reply text from the entry, so adding a role is a data
// change rather than a control-flow change.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Opening     string `json:"opening"`
	Reply       string `json:"reply"`
}

// Roles is the built-in role catalog.
var Roles = []Role{
	{
		ID:          "assistant",
		Name:        "智能助手",
		Description: "专业、理性的AI助手",
		Opening:     "我是你的智能助手，随时为你提供专业的帮助。",
		Reply:       "我理解你的问题，让我来帮助你解决这个问题。",
	},
	{
		ID:          "girlfriend",
		Name:        "虚拟女友",
		Description: "温柔体贴的AI伴侣",
		Opening:     "亲爱的，今天过得怎么样呀？",
		Reply:       "亲爱的，我完全理解你的感受。让我们一起来解决这个问题吧！",
	},
	{
		ID:          "crayon",
		Name:        "蜡笔小新",
		Description: "活泼可爱的动漫角色",
		Opening:     "我是野原新之助，最喜欢吃巧克力棒了！",
		Reply:       "哈哈哈！这个问题好有趣啊！让我想想该怎么回答...",
	},
	{
		ID:          "friend",
		Name:        "知心朋友",
		Description: "理解你的知心好友",
		Opening:     "有什么想和我分享的吗？我一直在这里倾听。",
		Reply:       "嗯，我明白你的意思。作为朋友，我建议...",
	},
}

// RoleByID looks up a catalog role.
func RoleByID(id string) (Role, bool) {
	for _, r := range Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// AIModel is a selectable language model.
type AIModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var Models = []AIModel{
	{ID: "gpt-4", Name: "GPT-4 Advanced"},
	{ID: "gpt-3.5", Name: "GPT-3.5 Turbo"},
	{ID: "claude", Name: "Claude 3"},
	{ID: "gemini", Name: "Gemini Pro"},
}

// ModelByID looks up a catalog model.
func ModelByID(id string) (AIModel, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return AIModel{}, false
}

// Voice is a selectable speaking voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var Voices = []Voice{
	{ID: "female1", Name: "女声 - 默认"},
	{ID: "female2", Name: "女声 - 温柔"},
	{ID: "male1", Name: "男声 - 默认"},
	{ID: "male2", Name: "男声 - 沉稳"},
}

// VoiceByID looks up a catalog voice.
func VoiceByID(id string) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// PersonaBinding ties a role/model/voice triple to one device. A device has
// exactly one active binding at a time.
type PersonaBinding struct {
	DeviceID string `json:"device_id"`
	RoleID   string `json:"role_id"`
	ModelID  string `json:"model_id"`
	VoiceID  string `json:"voice_id"`
}

// DefaultPersona is the binding a device receives on first session contact.
func DefaultPersona(deviceID string) PersonaBinding {
	return PersonaBinding{
		DeviceID: deviceID,
		RoleID:   "assistant",
		ModelID:  "gpt-4",
		VoiceID:  "female1",
	}
}

// TurnSender identifies who produced a conversation turn.
type TurnSender string

const (
	TurnSenderUser  TurnSender = "user"
	TurnSenderAgent TurnSender = "agent"
)

// ConversationTurn is one entry of the append-only session transcript.
type ConversationTurn struct {
	ID     string     `json:"id"`
	Sender TurnSender `json:"sender"`
	Text   string     `json:"text"`
	SentAt time.Time  `json:"sent_at"`
}
