package entities

import "time"

// Customer is the business side of every conversation. Customers and their
// comm methods are provisioned upstream; this service only reads them.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerCommMethod is a provisioned channel address belonging to a customer.
// (customer_id, type, value) is unique.
type CustomerCommMethod struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	Type       CommMethodType `json:"type"`
	Value      string         `json:"value"`
	Label      *string        `json:"label"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CustomerContact is an external party a customer exchanges messages with.
// Contacts are discovered lazily: names stay null until enriched elsewhere.
type CustomerContact struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	FirstName  *string   `json:"first_name"`
	LastName   *string   `json:"last_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomerContactCommMethod is a channel address belonging to a contact.
// (customer_contact_id, type, value) is unique.
type CustomerContactCommMethod struct {
	ID                string         `json:"id"`
	CustomerContactID string         `json:"customer_contact_id"`
	CustomerID        string         `json:"customer_id"`
	Type              CommMethodType `json:"type"`
	Value             string         `json:"value"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Conversation is the single thread between one customer and one contact.
// ParticipantsKey is the sorted, comma-joined pair of their ids and is unique.
type Conversation struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	CustomerContactID string    `json:"customer_contact_id"`
	ParticipantsKey   string    `json:"participants_key"`
	CreatedAt         time.Time `json:"created_at"`
}

// Message is one relayed message inside a conversation. Exactly one of the
// customer comm ids and one of the contact comm ids is set, by direction.
// Rows are immutable once written.
type Message struct {
	ID                  string      `json:"id"`
	ConversationID      string      `json:"conversation_id"`
	FromCustomerCommID  *string     `json:"from_customer_comm_id"`
	ToCustomerCommID    *string     `json:"to_customer_comm_id"`
	FromContactCommID   *string     `json:"from_contact_comm_id"`
	ToContactCommID     *string     `json:"to_contact_comm_id"`
	MessagingProviderID *string     `json:"messaging_provider_id"`
	MessageType         MessageType `json:"message_type"`
	Body                *string     `json:"body"`
	Attachments         *string     `json:"attachments"` // JSON-encoded list of references
	Timestamp           time.Time   `json:"timestamp"`   // message-reported time, not receipt time
}
