package realtime

import "github.com/MrWong99/realtalk/pkg/audio"

// Outbound event types.
const (
	TypeInputAudioAppend = "input_audio_buffer.append"
	TypeSessionUpdate    = "session.update"
)

// AppendAudioMessage carries one captured chunk to the service.
type AppendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

// NewAppendAudio wraps chunk in an input_audio_buffer.append event.
func NewAppendAudio(chunk audio.EncodedChunk) AppendAudioMessage {
	return AppendAudioMessage{Type: TypeInputAudioAppend, Audio: chunk.Base64}
}

// SessionUpdateMessage reconfigures the remote session.
type SessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

// SessionParams are the session.update fields this client sets.
type SessionParams struct {
	Voice             string `json:"voice,omitempty"`
	Instructions      string `json:"instructions,omitempty"`
	InputAudioFormat  string `json:"input_audio_format"`
	OutputAudioFormat string `json:"output_audio_format"`
}

// NewSessionUpdate builds a session.update that pins both audio directions
// to pcm16 and sets the optional voice and instructions.
func NewSessionUpdate(voice, instructions string) SessionUpdateMessage {
	return SessionUpdateMessage{
		Type: TypeSessionUpdate,
		Session: SessionParams{
			Voice:             voice,
			Instructions:      instructions,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
		},
	}
}
