package infrastructure

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedSampleData provisions two demo customers with their comm methods and
// one known contact each. Runs once: a non-empty customers table is left
// untouched.
func SeedSampleData(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		return fmt.Errorf("check existing customers: %w", err)
	}
	if count > 0 {
		return nil
	}

	customer1 := uuid.NewString()
	_, err := pool.Exec(ctx,
		"INSERT INTO customers (id, name) VALUES ($1, $2)",
		customer1, "Keystone Carpentry")
	if err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO customer_comm_methods (id, customer_id, type, value, label) VALUES
		($1, $2, 'phone', '+12155550000', 'main phone number'),
		($3, $2, 'email', 'info@keystonecarpentry.com', 'main email'),
		($4, $2, 'whatsapp', '+12155550000', 'whatsapp number')
	`, uuid.NewString(), customer1, uuid.NewString(), uuid.NewString())
	if err != nil {
		return fmt.Errorf("seed customer comm methods: %w", err)
	}

	contact1 := uuid.NewString()
	_, err = pool.Exec(ctx,
		"INSERT INTO customer_contacts (id, customer_id, first_name, last_name) VALUES ($1, $2, $3, $4)",
		contact1, customer1, "Jane", "Doe")
	if err != nil {
		return fmt.Errorf("seed contact: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO customer_contact_comm_methods (id, customer_contact_id, customer_id, type, value) VALUES
		($1, $2, $3, 'phone', '+15551230001'),
		($4, $2, $3, 'email', 'janed@gmail.com')
	`, uuid.NewString(), contact1, customer1, uuid.NewString())
	if err != nil {
		return fmt.Errorf("seed contact comm methods: %w", err)
	}

	customer2 := uuid.NewString()
	_, err = pool.Exec(ctx,
		"INSERT INTO customers (id, name) VALUES ($1, $2)",
		customer2, "Hydro NYC")
	if err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO customer_comm_methods (id, customer_id, type, value, label) VALUES
		($1, $2, 'phone', '+12155551111', 'main number'),
		($3, $2, 'email', 'info@hydronyc.com', 'main email')
	`, uuid.NewString(), customer2, uuid.NewString())
	if err != nil {
		return fmt.Errorf("seed customer comm methods: %w", err)
	}

	contact2 := uuid.NewString()
	_, err = pool.Exec(ctx,
		"INSERT INTO customer_contacts (id, customer_id, first_name, last_name) VALUES ($1, $2, $3, $4)",
		contact2, customer2, "John", "Doe")
	if err != nil {
		return fmt.Errorf("seed contact: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO customer_contact_comm_methods (id, customer_contact_id, customer_id, type, value)
		VALUES ($1, $2, $3, 'phone', '+15551230002')
	`, uuid.NewString(), contact2, customer2)
	if err != nil {
		return fmt.Errorf("seed contact comm methods: %w", err)
	}

	return nil
}
