package db

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agendabot/internal/types"
)

const (
	credentialFile = "credential.bin"
	stateFile      = "app_state.json"
)

// fileState is the on-disk shape of the non-credential records.
type fileState struct {
	Location *types.Location `json:"location,omitempty"`
	LastRun  string          `json:"last_run,omitempty"` // RFC3339Nano
}

// FileStore keeps state in two files under a directory: the sealed credential
// and a small JSON document for location and last-run. Writes go through a
// temp file plus rename so a crash mid-write never leaves a torn record.
type FileStore struct {
	dir    string
	sealer *Sealer
	mu     sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed.
func NewFileStore(dir string, sealer *Sealer) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalState, "failed to create state directory", err)
	}
	return &FileStore{dir: dir, sealer: sealer}, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by rename.
func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".state-*")
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState, "failed to create temp state file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalState, "failed to write state file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalState, "failed to close state file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.NewAppError(types.ErrCodeInternalState, "failed to replace state file", err)
	}
	return nil
}

// Load implements CredentialStore.
func (s *FileStore) Load(ctx context.Context) (*types.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(filepath.Join(s.dir, credentialFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalState, "failed to read credential file", err)
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
func (s *FileStore) Save(ctx context.Context, cred *types.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState, "failed to encode credential", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return err
	}
	return s.writeAtomic(filepath.Join(s.dir, credentialFile), sealed)
}

// readState loads the JSON state document, returning an empty document when
// the file does not exist yet.
func (s *FileStore) readState() (fileState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return fileState{}, nil
	}
	if err != nil {
		return fileState{}, types.NewAppError(types.ErrCodeInternalState, "failed to read state file", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, types.NewAppError(types.ErrCodeInternalState, "failed to decode state file", err)
	}
	return st, nil
}

func (s *FileStore) writeState(st fileState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState, "failed to encode state file", err)
	}
	return s.writeAtomic(filepath.Join(s.dir, stateFile), data)
}

// Location implements StateStore.
func (s *FileStore) Location(ctx context.Context) (types.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readState()
	if err != nil || st.Location == nil {
		return types.Location{}, err
	}
	return *st.Location, nil
}

// SetLocation implements StateStore. The state document is re-read under the
// lock immediately before the write so a concurrent last-run update is never
// lost.
func (s *FileStore) SetLocation(ctx context.Context, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readState()
	if err != nil {
		return err
	}
	st.Location = &loc
	return s.writeState(st)
}

// LastRun implements StateStore.
func (s *FileStore) LastRun(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readState()
	if err != nil || st.LastRun == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, st.LastRun)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeInternalState, "failed to decode last run timestamp", err)
	}
	return t, nil
}

// SetLastRun implements StateStore.
func (s *FileStore) SetLastRun(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.readState()
	if err != nil {
		return err
	}
	st.LastRun = t.UTC().Format(time.RFC3339Nano)
	return s.writeState(st)
}
