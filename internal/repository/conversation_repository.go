package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"messaging_service/internal/entities"
)

// ConversationRepository maps a (customer, contact) pair to its single
// conversation thread.
type ConversationRepository struct {
	db DB
}

func NewConversationRepository(db DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ParticipantsKey is the canonical, order-independent identifier of a
// (customer, contact) pair: both ids sorted lexicographically, comma-joined.
// A conversation between A and B is the same regardless of who is "from".
func ParticipantsKey(customerID, contactID string) string {
	if strings.Compare(customerID, contactID) <= 0 {
		return customerID + "," + contactID
	}
	return contactID + "," + customerID
}

// ResolveConversation returns the conversation id for the pair, creating the
// conversation on first contact. The UNIQUE constraint on participants_key
// guards the create; losing the insert race reconciles into a re-read.
func (r *ConversationRepository) ResolveConversation(ctx context.Context, customerID, contactID string) (string, error) {
	key := ParticipantsKey(customerID, contactID)

	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		id, found, err := r.lookupByKey(ctx, key)
		if err != nil {
			return "", err
		}
		if found {
			return id, nil
		}

		id = uuid.NewString()
		_, err = r.db.Exec(ctx, `
			INSERT INTO conversations (id, customer_id, customer_contact_id, participants_key)
			VALUES ($1, $2, $3, $4)
		`, id, customerID, contactID, key)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			return "", fmt.Errorf("insert conversation: %w", err)
		}
		// Concurrent request created the conversation first; read theirs.
	}
	return "", fmt.Errorf("conversation resolution did not converge for participants key: %s", key)
}

func (r *ConversationRepository) lookupByKey(ctx context.Context, key string) (string, bool, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id FROM conversations WHERE participants_key = $1", key)
	if err != nil {
		return "", false, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", false, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("read conversations: %w", err)
	}

	if len(ids) > 1 {
		return "", false, &entities.AmbiguousIdentityError{Resource: "conversation", Value: key}
	}
	if len(ids) == 1 {
		return ids[0], true, nil
	}
	return "", false, nil
}
