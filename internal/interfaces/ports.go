package interfaces

import (
	"context"

	"messaging_service/internal/entities"
)

// IdentityStore resolves the two communicating parties to stable identities.
type IdentityStore interface {
	// ResolveCustomerCommMethod looks up a provisioned customer channel.
	// Returns the comm method id and owning customer id.
	ResolveCustomerCommMethod(ctx context.Context, commType entities.CommMethodType, value string) (commMethodID, customerID string, err error)

	// ResolveOrCreateContactCommMethod finds the contact comm method scoped
	// to the customer, lazily creating the contact and its comm method
	// together on first exchange. Returns the comm method id and contact id.
	ResolveOrCreateContactCommMethod(ctx context.Context, customerID string, commType entities.CommMethodType, value string) (contactCommID, contactID string, err error)
}

// ConversationStore maps a resolved (customer, contact) pair to its single
// conversation, creating it on first contact.
type ConversationStore interface {
	ResolveConversation(ctx context.Context, customerID, contactID string) (conversationID string, err error)
}

// MessageStore persists message rows.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *entities.Message) error
}

// DeliverySender pushes an outbound payload to a provider endpoint.
type DeliverySender interface {
	// DeliverWithRetry reports whether the payload was accepted by the
	// provider within the retry budget.
	DeliverWithRetry(ctx context.Context, endpoint string, payload map[string]any) bool
}
