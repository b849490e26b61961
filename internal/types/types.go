package types

import "time"

// PipelineRate is the sample rate every frame is converted to before it
// reaches the controller.
const PipelineRate = 16000

// AudioFrame is mono PCM16LE audio. Once pushed into a queue the producer
// must not touch PCM again.
type AudioFrame struct {
	PCM        []byte
	SampleRate int
	CapturedAt time.Time
}

// Duration of the frame at its sample rate.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

type TranscriptEvent struct {
	Text       string   `json:"text"`
	IsFinal    bool     `json:"is_final"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type ConversationTurn struct {
	Role    Role      `json:"role" msgpack:"r"`
	Content string    `json:"content" msgpack:"c"`
	At      time.Time `json:"timestamp" msgpack:"t"`
}

type VoiceStatus string

const (
	VoiceReady   VoiceStatus = "ready"
	VoicePending VoiceStatus = "pending"
	VoiceFailed  VoiceStatus = "failed"
)

type VoiceProfile struct {
	UserID   string      `json:"user_id" msgpack:"u"`
	Provider string      `json:"provider" msgpack:"p"`
	VoiceID  string      `json:"voice_id" msgpack:"v"`
	Status   VoiceStatus `json:"status" msgpack:"s"`
}

// Event is an observer record emitted by a running session.
type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// IndexRecord notes a persona index (re)build.
type IndexRecord struct {
	UserID  string    `json:"user_id" msgpack:"u"`
	Backend string    `json:"backend" msgpack:"b"`
	Path    string    `json:"path" msgpack:"p"`
	Chunks  int       `json:"chunks" msgpack:"n"`
	At      time.Time `json:"timestamp" msgpack:"t"`
}
