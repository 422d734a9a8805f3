// Package db provides the persistence layer for agendabot's three cross-cycle
// records: the OAuth credential, the current location selection, and the last
// digest send timestamp. StateConfig.Backend selects one of two backends,
// PostgreSQL (pgx) or plain files. Both re-read the stored value at
// the start of every operation so concurrent cycles never act on a cached
// snapshot.
package db

import (
	"context"
	"time"

	"agendabot/internal/types"
)

// ErrNoCredential is returned by CredentialStore.Load when no credential has
// ever been persisted. Callers distinguish this from I/O failures with
// errors.Is.
var ErrNoCredential = types.NewAppError(types.ErrCodeNotFoundState, "no stored credential", nil)

// CredentialStore persists the single OAuth credential. Save must fully
// overwrite the stored credential before returning; a failed Save leaves the
// previous record untouched.
type CredentialStore interface {
	Load(ctx context.Context) (*types.Credential, error)
	Save(ctx context.Context, cred *types.Credential) error
}

// StateStore persists the location selection and the last digest send time.
// LastRun returns the zero time when no digest has ever been sent.
type StateStore interface {
	Location(ctx context.Context) (types.Location, error)
	SetLocation(ctx context.Context, loc types.Location) error
	LastRun(ctx context.Context) (time.Time, error)
	SetLastRun(ctx context.Context, t time.Time) error
}

// Store is the full persistence surface handed to the bot wiring.
type Store interface {
	CredentialStore
	StateStore
}

// State keys shared by both backends.
const (
	keyCredential = "credential"
	keyLocation   = "location"
	keyLastRun    = "last_run"
)
