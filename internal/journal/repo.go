package journal

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores journal entries.
type Repository interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// PostgresRepository persists entries in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes an entry. Re-inserting an existing id is a no-op, so a
// redelivered queue message does not duplicate the row.
func (r *PostgresRepository) Insert(ctx context.Context, e Entry) (Entry, error) {
	e = prepare(e)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO capture_attempts (id, occurred_at, outcome, identity_id, identity_name, kind, confidence, message, frame_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING created_at
	`, e.ID, e.At, e.Outcome, e.IdentityID, e.IdentityName, e.Kind, e.Confidence, e.Message, e.FrameURL)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Frame = nil
	return e, nil
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Entry, error) {
	f = f.normalized()
	query := `SELECT id, occurred_at, outcome, identity_id, identity_name, kind, confidence, message, frame_url, created_at FROM capture_attempts`
	var args []any
	var clauses []string
	if f.Outcome != "" {
		args = append(args, f.Outcome)
		clauses = append(clauses, "outcome = $"+strconv.Itoa(len(args)))
	}
	if f.IdentityID != "" {
		args = append(args, f.IdentityID)
		clauses = append(clauses, "identity_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Outcome, &e.IdentityID, &e.IdentityName, &e.Kind, &e.Confidence, &e.Message, &e.FrameURL, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// MemoryRepository keeps entries in process, for dev and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemoryRepository creates an empty in-memory journal.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Insert(_ context.Context, e Entry) (Entry, error) {
	e = prepare(e)
	e.Frame = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.ID == e.ID {
			return existing, nil
		}
	}
	e.CreatedAt = r.now().UTC()
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Entry, error) {
	f = f.normalized()
	r.mu.Lock()
	matched := []Entry{}
	for _, e := range r.entries {
		if f.match(e) {
			matched = append(matched, e)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].At.After(matched[j].At) })
	if f.Offset >= len(matched) {
		return []Entry{}, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}
