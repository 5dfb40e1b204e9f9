// Package sqlstore implements state.Store on database/sql. SQLite is served by
// modernc.org/sqlite and Postgres by the pgx stdlib driver. Each source keeps
// one row per revision holding the encoded payload.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	accountstate "github.com/goliatone/go-accountstate"
	"github.com/goliatone/go-accountstate/account"
	"github.com/goliatone/go-accountstate/externalid"
	"github.com/goliatone/go-accountstate/pkg/state"
	"github.com/goliatone/go-accountstate/preferences"
	"github.com/goliatone/go-accountstate/revision"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configuration value to a dialect.
func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", value)
	}
}

func (d Dialect) validate() error {
	if d != DialectSQLite && d != DialectPostgres {
		return fmt.Errorf("sqlstore: unsupported dialect %q", d)
	}
	return nil
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS account_configs (
		account_id BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		revision TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (account_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS external_id_revisions (
		seq BIGINT PRIMARY KEY,
		revision TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS default_preferences (
		seq BIGINT PRIMARY KEY,
		revision TEXT NOT NULL,
		payload TEXT NOT NULL
	)`,
}

const (
	queryConfigHead       = `SELECT seq, revision, payload FROM account_configs WHERE account_id = ? ORDER BY seq DESC LIMIT 1`
	queryConfigInsert     = `INSERT INTO account_configs (account_id, seq, revision, payload) VALUES (?, ?, ?, ?)`
	queryExternalIDsHead  = `SELECT seq, revision, payload FROM external_id_revisions ORDER BY seq DESC LIMIT 1`
	queryExternalIDsAt    = `SELECT seq, revision, payload FROM external_id_revisions WHERE revision = ?`
	queryExternalIDInsert = `INSERT INTO external_id_revisions (seq, revision, payload) VALUES (?, ?, ?)`
	queryDefaultsHead     = `SELECT seq, revision, payload FROM default_preferences ORDER BY seq DESC LIMIT 1`
	queryDefaultsInsert   = `INSERT INTO default_preferences (seq, revision, payload) VALUES (?, ?, ?)`
)

// Store is a state.Store backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ state.Store = (*Store)(nil)

// New wraps an open database. The schema is not touched; call Migrate.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: db is required")
	}
	if err := dialect.validate(); err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if err := dialect.validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite allows one writer; a single connection serialises transactions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	store := &Store{db: db, dialect: dialect}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type record struct {
	seq     int64
	rev     revision.ID
	payload []byte
}

func (s *Store) row(ctx context.Context, q queryer, query string, args ...any) (record, bool, error) {
	var (
		rec     record
		rev     string
		payload string
	)
	err := q.QueryRowContext(ctx, s.rebind(query), args...).Scan(&rec.seq, &rev, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, err
	}
	rec.rev = revision.ID(rev)
	rec.payload = []byte(payload)
	return rec, true, nil
}

// maxWriteAttempts bounds how often an unconditional write is retried after
// losing the race for the next sequence number.
const maxWriteAttempts = 3

// write runs fn in a transaction. Unconditional writes re-read the head and
// retry when a concurrent writer committed the same sequence number first.
func (s *Store) write(ctx context.Context, unconditional bool, fn func(tx *sql.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.withTx(ctx, fn)
		if !unconditional || attempt >= maxWriteAttempts || !errors.Is(err, errConflict) {
			return err
		}
	}
}

var errConflict = fmt.Errorf("%w: concurrent write", state.ErrRevisionMismatch)

// insert appends a revision row. A duplicate sequence number means another
// writer advanced the head after it was read.
func (s *Store) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", errConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

func (s *Store) LoadAccountConfig(ctx context.Context, id account.ID) (accountstate.AccountConfig, error) {
	rec, ok, err := s.row(ctx, s.db, queryConfigHead, int64(id))
	if err != nil {
		return accountstate.AccountConfig{}, fmt.Errorf("sqlstore: load account %s: %w", id, err)
	}
	if !ok {
		return accountstate.AccountConfig{}, nil
	}
	extRev, err := s.ExternalIDsHead(ctx)
	if err != nil {
		return accountstate.AccountConfig{}, err
	}
	return state.DecodeAccountConfig(rec.payload, rec.rev, extRev)
}

func (s *Store) SaveAccountConfig(ctx context.Context, update state.AccountUpdate, expected revision.ID) (revision.ID, error) {
	payload, err := state.EncodeAccountUpdate(update)
	if err != nil {
		return revision.Zero, err
	}
	id := update.Account.ID

	var out revision.ID
	err = s.write(ctx, expected.IsZero(), func(tx *sql.Tx) error {
		current, _, err := s.row(ctx, tx, queryConfigHead, int64(id))
		if err != nil {
			return fmt.Errorf("sqlstore: load account %s: %w", id, err)
		}
		out = current.rev
		if err := state.CheckExpected(expected, current.rev); err != nil {
			return err
		}
		if !current.rev.IsZero() && string(current.payload) == string(payload) {
			return nil
		}
		next := revision.Of(current.rev, payload)
		if err := s.insert(ctx, tx, queryConfigInsert, int64(id), current.seq+1, string(next), string(payload)); err != nil {
			return fmt.Errorf("sqlstore: save account %s: %w", id, err)
		}
		out = next
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (s *Store) ExternalIDsHead(ctx context.Context) (revision.ID, error) {
	rec, _, err := s.row(ctx, s.db, queryExternalIDsHead)
	if err != nil {
		return revision.Zero, fmt.Errorf("sqlstore: load external ids head: %w", err)
	}
	return rec.rev, nil
}

func (s *Store) ByAccount(ctx context.Context, id account.ID) (externalid.Set, error) {
	rec, ok, err := s.row(ctx, s.db, queryExternalIDsHead)
	if err != nil {
		return externalid.Set{}, fmt.Errorf("sqlstore: load external ids: %w", err)
	}
	if !ok {
		return externalid.EmptySet(revision.Zero), nil
	}
	return state.ExternalIDsOf(rec.payload, id, rec.rev)
}

func (s *Store) ByAccountAt(ctx context.Context, id account.ID, rev revision.ID) (externalid.Set, error) {
	rec, ok, err := s.row(ctx, s.db, queryExternalIDsAt, string(rev))
	if err != nil {
		return externalid.Set{}, fmt.Errorf("sqlstore: load external ids %s: %w", rev.Short(), err)
	}
	if !ok {
		return externalid.Set{}, fmt.Errorf("%w: external ids %q", state.ErrUnknownRevision, rev)
	}
	return state.ExternalIDsOf(rec.payload, id, rec.rev)
}

func (s *Store) UpdateExternalIDs(ctx context.Context, upsert []externalid.ExternalID, remove []externalid.Key) (revision.ID, error) {
	var out revision.ID
	err := s.write(ctx, true, func(tx *sql.Tx) error {
		current, _, err := s.row(ctx, tx, queryExternalIDsHead)
		if err != nil {
			return fmt.Errorf("sqlstore: load external ids: %w", err)
		}
		out = current.rev
		payload, changed, err := state.NextExternalIDs(current.payload, upsert, remove)
		if err != nil || !changed {
			return err
		}
		next := revision.Of(current.rev, payload)
		if err := s.insert(ctx, tx, queryExternalIDInsert, current.seq+1, string(next), string(payload)); err != nil {
			return fmt.Errorf("sqlstore: save external ids: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Store) LoadDefaultPreferences(ctx context.Context) (preferences.Document, error) {
	rec, ok, err := s.row(ctx, s.db, queryDefaultsHead)
	if err != nil {
		return preferences.Document{}, fmt.Errorf("sqlstore: load default preferences: %w", err)
	}
	if !ok {
		return preferences.NewDefaultDocument(), nil
	}
	return state.DecodeDefaults(rec.payload, rec.rev)
}

func (s *Store) SaveDefaultPreferences(ctx context.Context, doc preferences.Document) (revision.ID, error) {
	payload, err := state.EncodeDefaults(doc)
	if err != nil {
		return revision.Zero, err
	}
	var out revision.ID
	err = s.write(ctx, true, func(tx *sql.Tx) error {
		current, _, err := s.row(ctx, tx, queryDefaultsHead)
		if err != nil {
			return fmt.Errorf("sqlstore: load default preferences: %w", err)
		}
		out = current.rev
		if !current.rev.IsZero() && string(current.payload) == string(payload) {
			return nil
		}
		next := revision.Of(current.rev, payload)
		if err := s.insert(ctx, tx, queryDefaultsInsert, current.seq+1, string(next), string(payload)); err != nil {
			return fmt.Errorf("sqlstore: save default preferences: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}
