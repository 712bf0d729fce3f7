package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the uniform wire frame, identical in both directions.
type Envelope struct {
	Kind      MessageKind     `json:"type"`
	Channel   ChannelID       `json:"channel"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
	MessageID string          `json:"message_id"`
}

// NewEnvelope builds an outbound envelope with a fresh message ID and a UTC
// timestamp. payload may be nil for kinds that carry no body.
func NewEnvelope(kind MessageKind, channel ChannelID, payload any) (Envelope, error) {
	env := Envelope{
		Kind:      kind,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.New().String(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Payload = data
	}
	return env, nil
}

// NewPing builds a liveness probe frame.
func NewPing() Envelope {
	env, _ := NewEnvelope(KindPing, ChannelNotification, struct{}{})
	return env
}

// Decode parses a raw inbound frame. It fails on invalid JSON and on frames
// whose type is not part of the wire vocabulary.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if !env.Kind.Known() {
		return Envelope{}, fmt.Errorf("decode frame: unknown type %q", env.Kind)
	}
	return env, nil
}

// Time parses the envelope timestamp. The zero time is returned when the
// server sent a format this client does not recognize.
func (e Envelope) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}
