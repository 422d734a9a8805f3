package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/types"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	sealer, err := NewSealer(types.SecretString(testSealKey))
	require.NoError(t, err)
	store, err := NewFileStore(t.TempDir(), sealer)
	require.NoError(t, err)
	return store
}

func TestFileStore_Credential_RoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	cred := &types.Credential{
		AccessToken:  "tok",
		RefreshToken: "ref",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Scopes:       []string{"calendar.readonly"},
	}
	require.NoError(t, store.Save(ctx, cred))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestFileStore_Load_NoCredential(t *testing.T) {
	store := newTestFileStore(t)

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestFileStore_CredentialSealedOnDisk(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &types.Credential{AccessToken: "very-secret-token"}))

	raw, err := os.ReadFile(filepath.Join(store.dir, credentialFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-token")
}

func TestFileStore_Location_RoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	loc, err := store.Location(ctx)
	require.NoError(t, err)
	assert.Zero(t, loc)

	want := types.Location{Municipality: "Oviedo", Code: "33044"}
	require.NoError(t, store.SetLocation(ctx, want))

	loc, err = store.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, loc)
}

func TestFileStore_LastRun_RoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	last, err := store.LastRun(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	want := time.Date(2026, 8, 30, 9, 30, 0, 123456789, time.UTC)
	require.NoError(t, store.SetLastRun(ctx, want))

	last, err = store.LastRun(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(want))
}

func TestFileStore_LocationSurvivesLastRunUpdate(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	want := types.Location{Municipality: "Madrid", Code: "28079"}
	require.NoError(t, store.SetLocation(ctx, want))
	require.NoError(t, store.SetLastRun(ctx, time.Now()))

	loc, err := store.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, loc)
}

func TestFileStore_CorruptCredentialFileFails(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(store.dir, credentialFile), []byte("garbage"), 0o600))

	_, err := store.Load(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoCredential)
}
