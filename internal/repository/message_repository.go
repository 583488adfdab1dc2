package repository

import (
	"context"
	"fmt"

	"messaging_service/internal/entities"
)

type MessageRepository struct {
	db DB
}

func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// SaveMessage persists a built message as a single durable write. Rows are
// immutable after this insert.
func (r *MessageRepository) SaveMessage(ctx context.Context, msg *entities.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (
			id, conversation_id,
			from_customer_comm_id, to_customer_comm_id,
			from_contact_comm_id, to_contact_comm_id,
			messaging_provider_id, message_type, body, attachments, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		msg.ID, msg.ConversationID,
		msg.FromCustomerCommID, msg.ToCustomerCommID,
		msg.FromContactCommID, msg.ToContactCommID,
		msg.MessagingProviderID, string(msg.MessageType), msg.Body, msg.Attachments, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
