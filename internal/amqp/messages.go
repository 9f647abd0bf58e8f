package amqp

import (
	"encoding/json"
	"time"
)

// ChangeMessage announces that topics changed on the instance named Origin.
type ChangeMessage struct {
	Origin    string    `json:"origin"`
	Topics    []string  `json:"topics"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a new change message
func NewChangeMessage(origin string, topics []string) *ChangeMessage {
	return &ChangeMessage{
		Origin:    origin,
		Topics:    topics,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
