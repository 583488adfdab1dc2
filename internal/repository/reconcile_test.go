package repository

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"messaging_service/internal/entities"
)

// fakeDB implements the DB interface over in-memory tables that enforce the
// same unique constraints the schema declares: (customer_id, type, value) on
// customer_contact_comm_methods and participants_key on conversations.
// Inserts that collide with a committed row fail with a 23505 PgError, the
// same shape pgx surfaces from Postgres; inserts that collide with an
// uncommitted competitor block until that transaction resolves, matching the
// row-lock wait a real duplicate insert experiences.
type fakeDB struct {
	mu            sync.Mutex
	contacts      map[string]string         // contact id -> customer id
	contactComms  map[string]contactCommRow // "customerID|type|value" -> row
	pendingComms  map[string]chan struct{}  // claimed by an open transaction
	conversations map[string]string         // participants_key -> conversation id

	afterContactLookup      func()
	afterConversationLookup func()
}

type contactCommRow struct {
	id        string
	contactID string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		contacts:      make(map[string]string),
		contactComms:  make(map[string]contactCommRow),
		pendingComms:  make(map[string]chan struct{}),
		conversations: make(map[string]string),
	}
}

func commKey(customerID, commType, value string) string {
	return customerID + "|" + commType + "|" + value
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// putContactComm commits a row directly, bypassing any transaction. Tests use
// it to play the competing request that wins the insert race.
func (d *fakeDB) putContactComm(customerID, commType, value, commID, contactID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[contactID] = customerID
	d.contactComms[commKey(customerID, commType, value)] = contactCommRow{id: commID, contactID: contactID}
}

func (d *fakeDB) putConversation(key, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations[key] = id
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "customer_contact_comm_methods"):
		key := commKey(args[0].(string), args[1].(string), args[2].(string))
		d.mu.Lock()
		row, ok := d.contactComms[key]
		d.mu.Unlock()
		if d.afterContactLookup != nil {
			d.afterContactLookup()
		}
		if !ok {
			return &stubRows{}, nil
		}
		return &stubRows{rows: [][]string{{row.id, row.contactID}}}, nil
	case strings.Contains(sql, "conversations"):
		key := args[0].(string)
		d.mu.Lock()
		id, ok := d.conversations[key]
		d.mu.Unlock()
		if d.afterConversationLookup != nil {
			d.afterConversationLookup()
		}
		if !ok {
			return &stubRows{}, nil
		}
		return &stubRows{rows: [][]string{{id}}}, nil
	}
	panic("fakeDB: unexpected query: " + sql)
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "INSERT INTO conversations") {
		key := args[3].(string)
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.conversations[key]; ok {
			return pgconn.CommandTag{}, uniqueViolation("conversations_participants_key_key")
		}
		d.conversations[key] = args[0].(string)
		return pgconn.CommandTag{}, nil
	}
	panic("fakeDB: unexpected exec: " + sql)
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{db: d}, nil
}

type fakeTx struct {
	db *fakeDB

	contactID         string
	contactCustomerID string

	commKey string
	commRow contactCommRow
	done    chan struct{} // non-nil while this tx holds the pending claim
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "customer_contact_comm_methods"):
		key := commKey(args[2].(string), args[3].(string), args[4].(string))
		row := contactCommRow{id: args[0].(string), contactID: args[1].(string)}
		for {
			t.db.mu.Lock()
			if _, ok := t.db.contactComms[key]; ok {
				t.db.mu.Unlock()
				return pgconn.CommandTag{}, uniqueViolation("customer_contact_comm_methods_customer_id_type_value_key")
			}
			other, claimed := t.db.pendingComms[key]
			if !claimed {
				t.done = make(chan struct{})
				t.db.pendingComms[key] = t.done
				t.commKey, t.commRow = key, row
				t.db.mu.Unlock()
				return pgconn.CommandTag{}, nil
			}
			t.db.mu.Unlock()
			<-other // competitor holds the key; wait for its tx, then re-check
		}
	case strings.Contains(sql, "customer_contacts"):
		t.contactID = args[0].(string)
		t.contactCustomerID = args[1].(string)
		return pgconn.CommandTag{}, nil
	}
	panic("fakeTx: unexpected exec: " + sql)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.contactID != "" {
		t.db.contacts[t.contactID] = t.contactCustomerID
	}
	if t.done != nil {
		t.db.contactComms[t.commKey] = t.commRow
		delete(t.db.pendingComms, t.commKey)
		close(t.done)
		t.done = nil
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done != nil {
		delete(t.db.pendingComms, t.commKey)
		close(t.done)
		t.done = nil
	}
	return nil
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("fakeTx: Begin") }
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("fakeTx: CopyFrom")
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("fakeTx: SendBatch")
}
func (t *fakeTx) LargeObjects() pgx.LargeObjects { panic("fakeTx: LargeObjects") }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("fakeTx: Prepare")
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("fakeTx: Query")
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("fakeTx: QueryRow")
}
func (t *fakeTx) Conn() *pgx.Conn { panic("fakeTx: Conn") }

// stubRows replays prefetched string rows through the pgx.Rows interface.
type stubRows struct {
	rows [][]string
	idx  int
}

func (r *stubRows) Close() {}
func (r *stubRows) Err() error { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}
func (r *stubRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}
func (r *stubRows) Values() ([]any, error) { return nil, nil }
func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Conn() *pgx.Conn { return nil }

func TestResolveOrCreateContactCommMethodReconcilesLostInsertRace(t *testing.T) {
	db := newFakeDB()
	repo := NewIdentityRepository(db)

	// A competing request lands its contact between our empty lookup and our
	// insert. Each side invents a fresh contact id, so only the
	// (customer_id, type, value) constraint can reject the loser.
	var winnerOnce sync.Once
	db.afterContactLookup = func() {
		winnerOnce.Do(func() {
			db.putContactComm("cust-1", "phone", "+15559990000", "ccm-winner", "contact-winner")
		})
	}

	commID, contactID, err := repo.ResolveOrCreateContactCommMethod(context.Background(), "cust-1", entities.CommMethodPhone, "+15559990000")
	if err != nil {
		t.Fatalf("ResolveOrCreateContactCommMethod: %v", err)
	}
	if commID != "ccm-winner" || contactID != "contact-winner" {
		t.Fatalf("got (%s, %s), want the winner's rows (ccm-winner, contact-winner)", commID, contactID)
	}
	if n := len(db.contactComms); n != 1 {
		t.Fatalf("contact comm methods stored = %d, want 1", n)
	}
}

func TestResolveConversationReconcilesLostInsertRace(t *testing.T) {
	db := newFakeDB()
	repo := NewConversationRepository(db)

	key := ParticipantsKey("cust-1", "contact-1")
	var winnerOnce sync.Once
	db.afterConversationLookup = func() {
		winnerOnce.Do(func() {
			db.putConversation(key, "conv-winner")
		})
	}

	id, err := repo.ResolveConversation(context.Background(), "cust-1", "contact-1")
	if err != nil {
		t.Fatalf("ResolveConversation: %v", err)
	}
	if id != "conv-winner" {
		t.Fatalf("conversation id = %s, want the winner's conv-winner", id)
	}
	if n := len(db.conversations); n != 1 {
		t.Fatalf("conversations stored = %d, want 1", n)
	}
}

func TestConcurrentContactResolutionCreatesSingleIdentity(t *testing.T) {
	db := newFakeDB()
	repo := NewIdentityRepository(db)

	const workers = 16
	results := make(chan [2]string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			commID, contactID, err := repo.ResolveOrCreateContactCommMethod(context.Background(), "cust-1", entities.CommMethodPhone, "+15559990000")
			if err != nil {
				errs <- err
				return
			}
			results <- [2]string{commID, contactID}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent resolution failed: %v", err)
	}

	var first [2]string
	for got := range results {
		if first == ([2]string{}) {
			first = got
			continue
		}
		if got != first {
			t.Fatalf("resolutions diverged: %v vs %v", got, first)
		}
	}
	if n := len(db.contactComms); n != 1 {
		t.Fatalf("contact comm methods stored = %d, want 1", n)
	}
	if n := len(db.contacts); n != 1 {
		t.Fatalf("contacts stored = %d, want 1", n)
	}
}
