package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"messaging_service/internal/entities"
)

// IdentityRepository owns lookup and lazy creation of the identities on both
// sides of a message: provisioned customer comm methods (read-only here) and
// discovered contacts with their comm methods.
type IdentityRepository struct {
	db DB
}

func NewIdentityRepository(db DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// ResolveCustomerCommMethod looks up the unique provisioned row for a channel
// address. Zero rows is a NotFoundError (customer channels are never created
// on demand); more than one row violates the uniqueness invariant and is
// surfaced as AmbiguousIdentityError.
func (r *IdentityRepository) ResolveCustomerCommMethod(ctx context.Context, commType entities.CommMethodType, value string) (string, string, error) {
	value = strings.TrimSpace(value)

	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id
		FROM customer_comm_methods
		WHERE type = $1 AND value = $2
	`, string(commType), value)
	if err != nil {
		return "", "", fmt.Errorf("query customer comm methods: %w", err)
	}
	defer rows.Close()

	type match struct{ commMethodID, customerID string }
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.commMethodID, &m.customerID); err != nil {
			return "", "", fmt.Errorf("scan customer comm method: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", "", fmt.Errorf("read customer comm methods: %w", err)
	}

	if len(matches) == 0 {
		return "", "", &entities.NotFoundError{Resource: "customer communication method", Value: value}
	}
	if len(matches) > 1 {
		return "", "", &entities.AmbiguousIdentityError{Resource: "customer communication method", Value: value}
	}
	return matches[0].commMethodID, matches[0].customerID, nil
}

// ResolveOrCreateContactCommMethod finds the contact comm method for a channel
// address within the customer's namespace, creating the contact and its comm
// method together on first exchange. The insert runs in one transaction and a
// unique-constraint rejection is reconciled by re-reading the winner's rows.
func (r *IdentityRepository) ResolveOrCreateContactCommMethod(ctx context.Context, customerID string, commType entities.CommMethodType, value string) (string, string, error) {
	value = strings.TrimSpace(value)

	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		commID, contactID, found, err := r.lookupContactCommMethod(ctx, customerID, commType, value)
		if err != nil {
			return "", "", err
		}
		if found {
			return commID, contactID, nil
		}

		commID, contactID, err = r.createContactWithCommMethod(ctx, customerID, commType, value)
		if err == nil {
			return commID, contactID, nil
		}
		if !isUniqueViolation(err) {
			return "", "", err
		}
		// A concurrent request created the same contact comm method between
		// our lookup and insert. Loop back and read theirs.
	}
	return "", "", fmt.Errorf("contact comm method resolution did not converge for value: %s", value)
}

func (r *IdentityRepository) lookupContactCommMethod(ctx context.Context, customerID string, commType entities.CommMethodType, value string) (string, string, bool, error) {
	// Scoped to the owning customer: the same phone number texting two
	// different customers is two distinct contacts.
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_contact_id
		FROM customer_contact_comm_methods
		WHERE customer_id = $1 AND type = $2 AND value = $3
	`, customerID, string(commType), value)
	if err != nil {
		return "", "", false, fmt.Errorf("query contact comm methods: %w", err)
	}
	defer rows.Close()

	type match struct{ commID, contactID string }
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.commID, &m.contactID); err != nil {
			return "", "", false, fmt.Errorf("scan contact comm method: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", "", false, fmt.Errorf("read contact comm methods: %w", err)
	}

	if len(matches) > 1 {
		return "", "", false, &entities.AmbiguousIdentityError{Resource: "customer contact communication method", Value: value}
	}
	if len(matches) == 1 {
		return matches[0].commID, matches[0].contactID, true, nil
	}
	return "", "", false, nil
}

func (r *IdentityRepository) createContactWithCommMethod(ctx context.Context, customerID string, commType entities.CommMethodType, value string) (string, string, error) {
	contactID := uuid.NewString()
	commID := uuid.NewString()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", "", fmt.Errorf("begin contact transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Names stay null until the contact is enriched elsewhere.
	_, err = tx.Exec(ctx, `
		INSERT INTO customer_contacts (id, customer_id, first_name, last_name)
		VALUES ($1, $2, NULL, NULL)
	`, contactID, customerID)
	if err != nil {
		return "", "", err
	}

	// UNIQUE (customer_id, type, value) is the race guard here: two racers
	// invent different contact ids, so only the customer-scoped constraint
	// can reject the loser and send it back to re-read the winner.
	_, err = tx.Exec(ctx, `
		INSERT INTO customer_contact_comm_methods (id, customer_contact_id, customer_id, type, value)
		VALUES ($1, $2, $3, $4, $5)
	`, commID, contactID, customerID, string(commType), value)
	if err != nil {
		return "", "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", err
	}
	return commID, contactID, nil
}
