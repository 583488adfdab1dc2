package http

import (
	"fmt"
	"strings"

	"messaging_service/internal/entities"
)

// FieldKind is the expected JSON shape of a payload field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindStringList
	KindTimestamp
)

type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// smsPayloadFields describes the phone-channel payload. The provider's
// correlation id only exists on inbound messages; before an outbound send the
// provider has not assigned one yet.
func smsPayloadFields(direction entities.Direction) []FieldSpec {
	fields := []FieldSpec{
		{Name: "from", Kind: KindString, Required: true},
		{Name: "to", Kind: KindString, Required: true},
		{Name: "type", Kind: KindString, Required: true},
		{Name: "timestamp", Kind: KindTimestamp, Required: true},
		{Name: "body", Kind: KindString, Required: false},
		{Name: "attachments", Kind: KindStringList, Required: false},
	}
	if direction == entities.DirectionInbound {
		fields = append(fields, FieldSpec{Name: "messaging_provider_id", Kind: KindString, Required: true})
	}
	return fields
}

func emailPayloadFields(direction entities.Direction) []FieldSpec {
	fields := []FieldSpec{
		{Name: "from", Kind: KindString, Required: true},
		{Name: "to", Kind: KindString, Required: true},
		{Name: "timestamp", Kind: KindTimestamp, Required: true},
		{Name: "body", Kind: KindString, Required: false},
		{Name: "attachments", Kind: KindStringList, Required: false},
	}
	if direction == entities.DirectionInbound {
		fields = append(fields, FieldSpec{Name: "xillio_id", Kind: KindString, Required: true})
	}
	return fields
}

// ValidatePayload checks an already-decoded JSON payload against the field
// specs before the core is invoked. sms requires a body, mms requires
// attachments, and email requires at least one of the oneOf fields. Errors
// accumulate and are joined into a single ValidationError.
func ValidatePayload(data map[string]any, fields []FieldSpec, oneOf []string) error {
	rawType, ok := data["type"].(string)
	if !ok || strings.TrimSpace(rawType) == "" {
		return &entities.ValidationError{Message: "invalid 'type'. 'type' must be a non-empty string"}
	}
	messageType, err := entities.ParseMessageType(rawType)
	if err != nil {
		return &entities.ValidationError{Message: "unsupported 'type' in payload. supported types are 'sms', 'mms', and 'email'"}
	}

	if messageType == entities.MessageTypeEmail && len(oneOf) > 0 {
		if err := checkOneOf(data, oneOf); err != nil {
			return err
		}
	}

	var errs []string
	for _, spec := range fields {
		required := spec.Required
		if messageType == entities.MessageTypeSMS && spec.Name == "body" {
			required = true
		} else if messageType == entities.MessageTypeMMS && spec.Name == "attachments" {
			required = true
		}

		value, present := data[spec.Name]
		if !present || value == nil {
			if required {
				errs = append(errs, "payload missing required field: "+spec.Name)
			}
			continue
		}

		switch spec.Kind {
		case KindString:
			if _, ok := value.(string); !ok {
				errs = append(errs, fmt.Sprintf("payload field '%s' must be of type string", spec.Name))
			}
		case KindStringList:
			if !isStringList(value) {
				errs = append(errs, fmt.Sprintf("payload field '%s' must be a list of string", spec.Name))
			}
		case KindTimestamp:
			s, ok := value.(string)
			if !ok {
				errs = append(errs, fmt.Sprintf("payload field '%s' must be an ISO8601 string representing datetime", spec.Name))
			} else if _, err := entities.ParseTimestamp(s); err != nil {
				errs = append(errs, fmt.Sprintf("payload field '%s' must be a valid ISO8601 datetime string", spec.Name))
			}
		}
	}

	if len(errs) > 0 {
		return &entities.ValidationError{Message: strings.Join(errs, "; ")}
	}
	return nil
}

// checkOneOf requires at least one of the listed fields to be present and
// non-empty.
func checkOneOf(data map[string]any, oneOf []string) error {
	for _, name := range oneOf {
		value, present := data[name]
		if !present || value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return nil
	}
	return &entities.ValidationError{
		Message: "one of the following fields must be provided in payload: " + strings.Join(oneOf, ", "),
	}
}

// isStringList accepts both a decoded JSON array ([]any of strings) and a
// native []string.
func isStringList(value any) bool {
	switch list := value.(type) {
	case []string:
		return true
	case []any:
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
