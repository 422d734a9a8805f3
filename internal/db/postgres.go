package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"agendabot/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// The store accepts this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps the three state records in a single key-value table.
// Every read hits the database directly; writes are single-statement upserts,
// so each record is read-modify-written atomically from the caller's view.
type PostgresStore struct {
	db     DBTX
	sealer *Sealer
}

// NewPostgresStore creates a PostgresStore backed by the given connection
// (pool or transaction).
func NewPostgresStore(db DBTX, sealer *Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

// EnsureSchema creates the bot_state table if it does not exist. Called once
// at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS bot_state (
		   key        text PRIMARY KEY,
		   value      bytea NOT NULL,
		   updated_at timestamptz NOT NULL DEFAULT now()
		 )`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to ensure bot_state schema", err)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM bot_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read bot_state", err)
	}
	return value, nil
}

func (s *PostgresStore) put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO bot_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		   SET value = EXCLUDED.value,
		       updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write bot_state", err)
	}
	return nil
}

// Load implements CredentialStore. The stored value is sealed; a record that
// fails to open is reported as a seal error, not as a missing credential.
func (s *PostgresStore) Load(ctx context.Context) (*types.Credential, error) {
	sealed, err := s.get(ctx, keyCredential)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, ErrNoCredential
	}
	plaintext, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}
	var cred types.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalState, "failed to decode stored credential", err)
	}
	return &cred, nil
}

// Save implements CredentialStore.
func (s *PostgresStore) Save(ctx context.Context, cred *types.Credential) error {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState, "failed to encode credential", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return err
	}
	return s.put(ctx, keyCredential, sealed)
}

// Location implements StateStore. Returns the zero Location when none has
// been stored yet; the caller falls back to the configured default.
func (s *PostgresStore) Location(ctx context.Context) (types.Location, error) {
	value, err := s.get(ctx, keyLocation)
	if err != nil || value == nil {
		return types.Location{}, err
	}
	var loc types.Location
	if err := json.Unmarshal(value, &loc); err != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeInternalState, "failed to decode stored location", err)
	}
	return loc, nil
}

// SetLocation implements StateStore.
func (s *PostgresStore) SetLocation(ctx context.Context, loc types.Location) error {
	value, err := json.Marshal(loc)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState, "failed to encode location", err)
	}
	return s.put(ctx, keyLocation, value)
}

// LastRun implements StateStore.
func (s *PostgresStore) LastRun(ctx context.Context) (time.Time, error) {
	value, err := s.get(ctx, keyLastRun)
	if err != nil || value == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeInternalState, "failed to decode last run timestamp", err)
	}
	return t, nil
}

// SetLastRun implements StateStore.
func (s *PostgresStore) SetLastRun(ctx context.Context, t time.Time) error {
	return s.put(ctx, keyLastRun, []byte(t.UTC().Format(time.RFC3339Nano)))
}
