package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent marks a handler failure that redelivery cannot fix.
// Such messages are dropped instead of requeued.
var ErrMalformedEvent = errors.New("malformed month event")

// MonthAction is what happened to a month.
type MonthAction string

const (
	ActionUpserted MonthAction = "upserted"
	ActionCopied   MonthAction = "copied"
	ActionDeleted  MonthAction = "deleted"
)

func (a MonthAction) IsValid() bool {
	switch a {
	case ActionUpserted, ActionCopied, ActionDeleted:
		return true
	default:
		return false
	}
}

// MonthEventMessage announces that a month changed. Consumers read the
// current document from the database; the message only carries the key.
type MonthEventMessage struct {
	Key       string      `json:"key"`
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	Action    MonthAction `json:"action"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMonthEventMessage creates an event stamped with the current time.
func NewMonthEventMessage(key string, year, month int, action MonthAction) *MonthEventMessage {
	return &MonthEventMessage{
		Key:       key,
		Year:      year,
		Month:     month,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MonthEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthEventMessageFromJSON decodes and checks a message body.
func MonthEventMessageFromJSON(data []byte) (*MonthEventMessage, error) {
	var msg MonthEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, fmt.Errorf("month event without key")
	}
	if !msg.Action.IsValid() {
		return nil, fmt.Errorf("unknown month event action %q", msg.Action)
	}
	return &msg, nil
}
