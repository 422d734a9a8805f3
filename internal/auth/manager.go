// Package auth owns the OAuth credential lifecycle: acquisition, expiry
// detection, proactive renewal, and persistence. The manager keeps the
// calendar API session usable across long-running unattended operation.
//
// State machine: Unauthenticated -> Authenticated -> NearExpiry ->
// Renewed | Expired-NoRefresh. Renewal failures are never fatal; the caller
// proceeds with the stale credential and the resulting remote-call failure is
// reported as a data-fetch error, not a crash.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agendabot/internal/db"
	"agendabot/internal/types"
)

// RefreshResult is the tri-state outcome of CheckAndRefresh.
type RefreshResult string

const (
	// RefreshValid means no action was needed or renewal succeeded.
	RefreshValid RefreshResult = "valid"
	// RefreshFailed means a refresh token was present but the renewal call
	// failed. Non-fatal: the stored credential is left untouched and the
	// caller proceeds with it.
	RefreshFailed RefreshResult = "renewal_failed"
	// RefreshNoToken means the credential is near expiry and carries no
	// refresh token. Terminal: interactive authorization must be re-run
	// out-of-band.
	RefreshNoToken RefreshResult = "no_refresh_token"
)

// Authorizer produces a credential interactively. The manager never performs
// network listening or user interaction itself; it depends on this port.
type Authorizer interface {
	Authorize(ctx context.Context) (*types.Credential, error)
}

// Refresher exchanges a credential's refresh token for a renewed credential.
// Implementations must not mutate the input.
type Refresher interface {
	Refresh(ctx context.Context, cred *types.Credential) (*types.Credential, error)
}

// Manager is the credential lifecycle manager.
type Manager struct {
	store      db.CredentialStore
	authorizer Authorizer
	refresher  Refresher
	margin     time.Duration
	logger     *slog.Logger
	now        func() time.Time // injectable for tests
}

// NewManager creates a Manager. margin is the remaining-lifetime threshold
// below which CheckAndRefresh attempts renewal (30 minutes by default).
// authorizer may be nil when no interactive path exists in this deployment.
func NewManager(store db.CredentialStore, authorizer Authorizer, refresher Refresher, margin time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		authorizer: authorizer,
		refresher:  refresher,
		margin:     margin,
		logger:     logger,
		now:        time.Now,
	}
}

// Acquire returns a usable credential: the persisted one if it exists,
// otherwise the result of the interactive authorization flow (persisted
// before returning). Fails with auth_credential_missing when no credential
// is stored and no interactive flow is available.
func (m *Manager) Acquire(ctx context.Context) (*types.Credential, error) {
	cred, err := m.store.Load(ctx)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, db.ErrNoCredential) {
		return nil, err
	}

	if m.authorizer == nil {
		return nil, types.NewAppError(
			types.ErrCodeAuthCredentialMissing,
			"no stored credential and no interactive authorization flow available",
			nil,
		)
	}

	m.logger.InfoContext(ctx, "no stored credential, starting interactive authorization")
	cred, err = m.authorizer.Authorize(ctx)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeAuthCredentialMissing,
			"interactive authorization failed",
			err,
		)
	}
	if err := m.store.Save(ctx, cred); err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "credential acquired interactively",
		"expiry", cred.Expiry.Format(time.RFC3339),
	)
	return cred, nil
}

// CheckAndRefresh reads the persisted credential and renews it when its
// remaining lifetime falls below the configured margin.
//
// A successful renewal fully overwrites the stored credential before
// returning RefreshValid. A failed renewal leaves the stored credential
// untouched and returns RefreshFailed with the underlying error. A credential
// without a refresh token returns RefreshNoToken and never mutates the store.
func (m *Manager) CheckAndRefresh(ctx context.Context) (RefreshResult, error) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNoCredential) {
			return RefreshNoToken, types.NewAppError(
				types.ErrCodeAuthCredentialMissing,
				"no stored credential to refresh",
				err,
			)
		}
		return RefreshFailed, err
	}

	remaining := cred.TimeToExpiry(m.now())
	if remaining >= m.margin {
		return RefreshValid, nil
	}

	if !cred.Renewable() {
		m.logger.WarnContext(ctx, "credential near expiry with no refresh token",
			"remaining", remaining.String(),
		)
		return RefreshNoToken, types.NewAppError(
			types.ErrCodeAuthNoRefreshToken,
			"credential near expiry and not renewable",
			nil,
		)
	}

	renewed, err := m.refresher.Refresh(ctx, cred)
	if err != nil {
		m.logger.ErrorContext(ctx, "credential renewal failed, proceeding with stale credential",
			"remaining", remaining.String(),
			"error", err,
		)
		return RefreshFailed, types.NewAppError(
			types.ErrCodeAuthRefreshFailed,
			"token renewal call failed",
			err,
		)
	}

	// Providers may omit the refresh token on renewal; carry the old one
	// forward so the credential stays renewable.
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = cred.RefreshToken
	}

	if err := m.store.Save(ctx, renewed); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist renewed credential",
			"error", err,
		)
		return RefreshFailed, err
	}

	m.logger.InfoContext(ctx, "credential renewed",
		"expiry", renewed.Expiry.Format(time.RFC3339),
	)
	return RefreshValid, nil
}

// Current returns the latest persisted credential without any renewal logic.
// The aggregation cycle calls CheckAndRefresh first and then Current, so the
// credential used for remote queries is always the freshest stored value.
func (m *Manager) Current(ctx context.Context) (*types.Credential, error) {
	return m.store.Load(ctx)
}
