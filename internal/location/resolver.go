// Package location resolves free-text municipality names to AEMET
// municipality codes. The master municipality list is fetched once from the
// AEMET OpenData maestro endpoint, cached zstd-compressed on disk, and held
// in memory for the process lifetime.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"agendabot/internal/external"
	"agendabot/internal/types"
)

// cacheFile is the on-disk name of the compressed master list.
const cacheFile = "municipios.json.zst"

// maxListBytes caps master-list reads; the full list is a few MB of JSON.
const maxListBytes = 32 << 20

// Resolver maps a municipality name to its AEMET code.
type Resolver interface {
	Resolve(ctx context.Context, name string) (types.Location, error)
}

// municipality is one entry of the AEMET master list. The id carries an "id"
// prefix ahead of the five-digit code.
type municipality struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}

// AEMETResolver implements Resolver against the AEMET maestro endpoint.
type AEMETResolver struct {
	base     *external.BaseClient
	baseURL  string
	apiKey   types.SecretString
	cacheDir string
	logger   *slog.Logger

	mu     sync.Mutex
	byName map[string]types.Location // normalized name -> location
}

// NewAEMETResolver creates a resolver caching the master list under cacheDir.
func NewAEMETResolver(httpClient *http.Client, baseURL string, apiKey types.SecretString, cacheDir string, logger *slog.Logger) *AEMETResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AEMETResolver{
		base: external.NewBaseClient(
			httpClient,
			"aemet-maestro",
			external.DefaultRetryPolicy(),
			types.ErrCodeUpstreamForecast,
		),
		baseURL:  baseURL,
		apiKey:   apiKey,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Resolve looks the name up in the master list, loading it on first use.
// Matching ignores case and diacritics. An unknown name returns
// not_found_municipality so the bot can reply with a clear "not found"
// message.
func (r *AEMETResolver) Resolve(ctx context.Context, name string) (types.Location, error) {
	index, err := r.index(ctx)
	if err != nil {
		return types.Location{}, err
	}

	loc, ok := index[normalizeName(name)]
	if !ok {
		return types.Location{}, types.NewAppError(
			types.ErrCodeNotFoundMunicipality,
			fmt.Sprintf("no municipality named %q", name),
			nil,
		)
	}
	return loc, nil
}

// index returns the in-memory name index, building it from the disk cache or
// the remote master list on first call.
func (r *AEMETResolver) index(ctx context.Context) (map[string]types.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byName != nil {
		return r.byName, nil
	}

	raw, err := r.loadCache()
	if err != nil {
		r.logger.WarnContext(ctx, "municipality cache unreadable, refetching",
			"error", err,
		)
		raw = nil
	}
	if raw == nil {
		raw, err = r.fetchMasterList(ctx)
		if err != nil {
			return nil, err
		}
		if cacheErr := r.saveCache(raw); cacheErr != nil {
			// Cache writes are best-effort; resolution proceeds from memory.
			r.logger.WarnContext(ctx, "failed to cache municipality list",
				"error", cacheErr,
			)
		}
	}

	var entries []municipality
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "failed to decode municipality list", err)
	}

	index := make(map[string]types.Location, len(entries))
	for _, entry := range entries {
		code := strings.TrimPrefix(entry.ID, "id")
		index[normalizeName(entry.Nombre)] = types.Location{
			Municipality: entry.Nombre,
			Code:         code,
		}
	}

	r.byName = index
	return index, nil
}

// fetchMasterList performs the two-step AEMET fetch for the maestro list.
func (r *AEMETResolver) fetchMasterList(ctx context.Context) ([]byte, error) {
	body, err := r.get(ctx, r.baseURL+"/api/maestro/municipios")
	if err != nil {
		return nil, err
	}

	var env struct {
		Estado int    `json:"estado"`
		Datos  string `json:"datos"`
	}
	// The maestro endpoint sometimes returns the list directly instead of an
	// envelope; accept both shapes.
	if err := json.Unmarshal(body, &env); err != nil || env.Datos == "" {
		return body, nil
	}
	return r.get(ctx, env.Datos)
}

func (r *AEMETResolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build maestro request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api_key", r.apiKey.Unmask())

	resp, err := r.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("maestro endpoint returned %d", resp.StatusCode),
			nil,
		)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
}

// loadCache reads and decompresses the cached master list. Returns (nil, nil)
// when no cache exists yet.
func (r *AEMETResolver) loadCache() ([]byte, error) {
	f, err := os.Open(filepath.Join(r.cacheDir, cacheFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return io.ReadAll(io.LimitReader(dec, maxListBytes))
}

// saveCache writes the compressed master list via temp file plus rename.
func (r *AEMETResolver) saveCache(raw []byte) error {
	if err := os.MkdirAll(r.cacheDir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.cacheDir, ".municipios-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(r.cacheDir, cacheFile))
}

// normalizeName lowercases, trims, and strips diacritics from a municipality
// name so "mostoles" resolves "Móstoles". Transformers carry state, so a
// fresh chain is built per call rather than shared across goroutines.
func normalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, trimmed)
	if err != nil {
		folded = trimmed
	}
	return strings.ToLower(folded)
}
