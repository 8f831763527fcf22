// Package protocol implements the inbound side of the realtime protocol: it
// parses tagged server events and applies them to the single in-flight
// response held by an [Assembler].
//
// A [Dispatcher] is not safe for concurrent use. The pipeline feeds it from
// one goroutine only, which is what keeps the response buffers consistent.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParse wraps every failure to decode an inbound payload.
var ErrParse = errors.New("protocol: malformed event")

// Inbound event types.
const (
	TypeSessionCreated         = "session.created"
	TypeSessionUpdated         = "session.updated"
	TypeResponseCreated        = "response.created"
	TypeRateLimitsUpdated      = "rate_limits.updated"
	TypeConversationItemCreate = "conversation.item.created"
	TypeOutputItemAdded        = "response.output_item.added"
	TypeOutputItemDone         = "response.output_item.done"
	TypeContentPartAdded       = "response.content_part.added"
	TypeContentPartDone        = "response.content_part.done"
	TypeResponseDone           = "response.done"
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeSpeechStopped          = "input_audio_buffer.speech_stopped"
	TypeInputCommitted         = "input_audio_buffer.committed"

	TypeTextDelta            = "response.text.delta"
	TypeTextDone             = "response.text.done"
	TypeAudioTranscriptDelta = "response.audio_transcript.delta"
	TypeAudioTranscriptDone  = "response.audio_transcript.done"
	TypeAudioDelta           = "response.audio.delta"
	TypeAudioDone            = "response.audio.done"

	TypeError = "error"
)

// Event is one decoded inbound message. Type selects which of the optional
// fields are meaningful.
type Event struct {
	Type string `json:"type"`

	// response.text.delta / response.audio_transcript.delta carry text;
	// response.audio.delta carries base64 PCM16.
	Delta string `json:"delta,omitempty"`

	// response.text.done / response.audio_transcript.done
	Text string `json:"text,omitempty"`

	// response.audio_transcript.done also names the final value transcript.
	Transcript string `json:"transcript,omitempty"`

	// error event
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the nested object of an error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// FinalText returns the authoritative text of a done event. Some services
// name the field transcript on audio_transcript.done; text wins when both are
// present.
func (e *Event) FinalText() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Transcript
}

// Parse decodes one inbound payload. A payload that is not a JSON object or
// lacks a string type fails with an error wrapping [ErrParse].
func Parse(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if evt.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrParse)
	}
	return evt, nil
}

// ServerError is an error event reported by the service. It is non-fatal;
// the connection stays open.
type ServerError struct {
	Code    string
	Message string
}

// Error implements error.
func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("protocol: server error %s: %s", e.Code, e.Message)
	}
	return "protocol: server error: " + e.Message
}
