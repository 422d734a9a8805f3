package location

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/types"
)

const masterList = `[
	{"id":"id28079","nombre":"Madrid"},
	{"id":"id33044","nombre":"Oviedo"},
	{"id":"id20069","nombre":"San Sebastián"}
]`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newListServer serves the maestro list directly (the non-enveloped shape)
// and counts hits.
func newListServer(hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(masterList))
	}))
}

func TestResolver_Resolve(t *testing.T) {
	var hits atomic.Int32
	srv := newListServer(&hits)
	defer srv.Close()

	r := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), t.TempDir(), testLogger())

	loc, err := r.Resolve(context.Background(), "Oviedo")
	require.NoError(t, err)
	assert.Equal(t, types.Location{Municipality: "Oviedo", Code: "33044"}, loc)

	// Lookup is case-insensitive and trims whitespace.
	loc, err = r.Resolve(context.Background(), "  madrid ")
	require.NoError(t, err)
	assert.Equal(t, "28079", loc.Code)

	loc, err = r.Resolve(context.Background(), "san sebastián")
	require.NoError(t, err)
	assert.Equal(t, "20069", loc.Code)

	// Diacritics are ignored; the reply carries the canonical name.
	loc, err = r.Resolve(context.Background(), "san sebastian")
	require.NoError(t, err)
	assert.Equal(t, "20069", loc.Code)
	assert.Equal(t, "San Sebastián", loc.Municipality)
}

func TestResolver_UnknownNameIsNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := newListServer(&hits)
	defer srv.Close()

	r := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), t.TempDir(), testLogger())

	_, err := r.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundMunicipality, appErr.Code)
}

func TestResolver_MasterListFetchedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := newListServer(&hits)
	defer srv.Close()

	r := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), t.TempDir(), testLogger())

	for range 3 {
		_, err := r.Resolve(context.Background(), "Madrid")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), hits.Load())
}

func TestResolver_DiskCacheSurvivesRestart(t *testing.T) {
	var hits atomic.Int32
	srv := newListServer(&hits)
	defer srv.Close()

	dir := t.TempDir()

	first := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), dir, testLogger())
	_, err := first.Resolve(context.Background(), "Madrid")
	require.NoError(t, err)

	// A fresh resolver over the same cache dir must not refetch.
	second := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), dir, testLogger())
	loc, err := second.Resolve(context.Background(), "Oviedo")
	require.NoError(t, err)

	assert.Equal(t, "33044", loc.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolver_CorruptCacheRefetches(t *testing.T) {
	var hits atomic.Int32
	srv := newListServer(&hits)
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), []byte("not zstd"), 0o600))

	r := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), dir, testLogger())

	loc, err := r.Resolve(context.Background(), "Madrid")
	require.NoError(t, err)
	assert.Equal(t, "28079", loc.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolver_EnvelopedMasterList(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/maestro/municipios", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"estado":200,"datos":"` + srv.URL + `/datos/maestro"}`))
	})
	mux.HandleFunc("/datos/maestro", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(masterList))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	r := NewAEMETResolver(srv.Client(), srv.URL, types.SecretString("k"), t.TempDir(), testLogger())

	loc, err := r.Resolve(context.Background(), "Oviedo")
	require.NoError(t, err)
	assert.Equal(t, "33044", loc.Code)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "madrid", normalizeName("  Madrid "))
	assert.Equal(t, "san sebastian", normalizeName("San Sebastián"))
	assert.Equal(t, "mostoles", normalizeName("Móstoles"))
	assert.Equal(t, normalizeName("Cádiz"), normalizeName("cadiz"))
}
