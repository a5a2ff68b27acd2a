package queue

import (
	"encoding/json"
	"errors"
	"strings"
)

// TypeStatusChanged marks an application moving to a new status.
const TypeStatusChanged = "application.status_changed"

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Type          string `json:"type"`
	ApplicationID string `json:"applicationId"`
	OwnerID       string `json:"ownerId"`
	From          string `json:"from"`
	To            string `json:"to"`
	Notes         string `json:"notes,omitempty"`
	OccurredAt    string `json:"occurredAt"`
	Version       int    `json:"version"`
}

// Validate checks the fields consumers rely on.
func (m Message) Validate() error {
	if m.Type != TypeStatusChanged {
		return errors.New("unknown message type: " + m.Type)
	}
	if strings.TrimSpace(m.ApplicationID) == "" {
		return errors.New("applicationId is required")
	}
	if strings.TrimSpace(m.OwnerID) == "" {
		return errors.New("ownerId is required")
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
