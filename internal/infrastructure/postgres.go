package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// Migrate creates the five tables owned by the service. The UNIQUE
// constraints are the storage-level guards behind every find-or-create:
// concurrent creators race freely and the loser reconciles on 23505.
func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customer_comm_methods (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			type TEXT NOT NULL,
			value TEXT NOT NULL,
			label TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (customer_id, type, value)
		);
	`)
	if err != nil {
		return fmt.Errorf("create customer_comm_methods table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customer_contacts (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			first_name TEXT,
			last_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create customer_contacts table: %w", err)
	}

	// customer_id is denormalized from the owning contact: the per-contact
	// constraint alone cannot reject two racers that each invent a fresh
	// contact id, so the race guard must key on the customer's namespace.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customer_contact_comm_methods (
			id TEXT PRIMARY KEY,
			customer_contact_id TEXT NOT NULL REFERENCES customer_contacts(id),
			customer_id TEXT NOT NULL REFERENCES customers(id),
			type TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (customer_contact_id, type, value),
			UNIQUE (customer_id, type, value)
		);
	`)
	if err != nil {
		return fmt.Errorf("create customer_contact_comm_methods table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			customer_contact_id TEXT NOT NULL REFERENCES customer_contacts(id),
			participants_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			from_customer_comm_id TEXT REFERENCES customer_comm_methods(id),
			to_customer_comm_id TEXT REFERENCES customer_comm_methods(id),
			from_contact_comm_id TEXT REFERENCES customer_contact_comm_methods(id),
			to_contact_comm_id TEXT REFERENCES customer_contact_comm_methods(id),
			messaging_provider_id TEXT,
			message_type TEXT NOT NULL,
			body TEXT,
			attachments TEXT,
			timestamp TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
