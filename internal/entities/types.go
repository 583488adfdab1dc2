package entities

import (
	"fmt"
	"strings"
	"time"
)

// CommMethodType is the channel a comm method is addressable on.
type CommMethodType string

const (
	CommMethodPhone    CommMethodType = "phone"
	CommMethodEmail    CommMethodType = "email"
	CommMethodWhatsApp CommMethodType = "whatsapp"
)

// ParseCommMethodType normalizes and validates a raw comm method type.
func ParseCommMethodType(raw string) (CommMethodType, error) {
	switch t := CommMethodType(strings.ToLower(strings.TrimSpace(raw))); t {
	case CommMethodPhone, CommMethodEmail, CommMethodWhatsApp:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported comm method type: %q", raw)
	}
}

// MessageType is the wire format of a message payload.
type MessageType string

const (
	MessageTypeSMS   MessageType = "sms"
	MessageTypeMMS   MessageType = "mms"
	MessageTypeEmail MessageType = "email"
)

func ParseMessageType(raw string) (MessageType, error) {
	switch t := MessageType(strings.ToLower(strings.TrimSpace(raw))); t {
	case MessageTypeSMS, MessageTypeMMS, MessageTypeEmail:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported message type: %q", raw)
	}
}

// Direction of a message relative to the customer.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseTimestamp parses a message-reported ISO-8601 timestamp. A trailing
// literal Z is the same instant as an explicit +00:00 offset; a string with
// no offset at all is taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO8601 timestamp: %q", raw)
	}
	return t, nil
}
