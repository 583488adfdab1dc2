package entities

import "fmt"

// NotFoundError means a required provisioned identity does not exist.
// Contacting an unregistered customer channel is a configuration error on the
// caller's side, never a create-on-demand case.
type NotFoundError struct {
	Resource string
	Value    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found for value: %s", e.Resource, e.Value)
}

// AmbiguousIdentityError means more than one row matched a key that a
// uniqueness constraint should keep unique. It signals upstream data
// corruption and is never resolved by picking one row.
type AmbiguousIdentityError struct {
	Resource string
	Value    string
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("multiple %s rows found for the same value: %s", e.Resource, e.Value)
}

// ValidationError is a payload shape, type, or enum violation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DeliveryFailedError means the outbound provider call did not succeed within
// the retry budget. The message is never recorded in that case.
type DeliveryFailedError struct {
	Endpoint string
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("failed to send message to outbound url %s", e.Endpoint)
}
