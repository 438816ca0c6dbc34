package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

// stateFileName is the persisted state record inside the dot directory.
const stateFileName = "state.json"

// Manager reads and writes the persisted state record. Absence of the file
// is equivalent to defaults; presence-but-unparsable is surfaced as
// errors.ErrStateCorrupt so a first run is never conflated with a damaged
// record.
type Manager struct {
	dir       string
	statePath string
	lock      *FileLock
}

// NewManager creates a Manager rooted at the given dot directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		statePath: filepath.Join(dir, stateFileName),
		lock:      NewFileLock(dir),
	}
}

// Path returns the location of the state file.
func (m *Manager) Path() string {
	return m.statePath
}

// Exists reports whether a persisted record is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.statePath)
	return err == nil
}

// Load reads the persisted record. The three outcomes are distinct:
//
//   - missing record: returns (Default(), false, nil)
//   - found record:   returns (state, true, nil)
//   - damaged record: returns (nil, false, err) wrapping errors.ErrStateCorrupt
//
// A corrupt record is never silently replaced by defaults; callers surface
// it so the user can run an explicit reset instead of unknowingly losing an
// approved scope.
func (m *Manager) Load() (*State, bool, error) {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), false, nil
		}
		return nil, false, errors.Wrapf(errors.ErrStateIO, "read %s: %v", m.statePath, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("parse %s: %v: %w", m.statePath, err, errors.ErrStateCorrupt)
	}
	if !s.Phase.Valid() {
		return nil, false, fmt.Errorf("parse %s: unknown phase %q: %w", m.statePath, s.Phase, errors.ErrStateCorrupt)
	}
	return &s, true, nil
}

// Save persists the record, pretty-printed, using an atomic temp-file
// rename so a crashed invocation never leaves a half-written record.
func (m *Manager) Save(s *State) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return errors.Wrapf(errors.ErrStateIO, "create %s: %v", m.dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	if err := atomicWriteFile(m.statePath, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrStateIO, "write %s: %v", m.statePath, err)
	}
	return nil
}

// Update runs fn against the current record and persists the result,
// holding an exclusive flock across the whole load-modify-save so
// overlapping hook invocations serialize instead of clobbering each other.
// Returns the new state.
func (m *Manager) Update(fn func(*State)) (*State, error) {
	if err := m.lock.Lock(); err != nil {
		return nil, errors.Wrapf(errors.ErrStateIO, "lock state: %v", err)
	}
	defer func() { _ = m.lock.Unlock() }()

	s, _, err := m.Load()
	if err != nil {
		return nil, err
	}
	fn(s)
	if err := m.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Clear removes the persisted record, reinstating defaults on the next
// load. Used by reset. No-op when the record is already absent.
func (m *Manager) Clear() error {
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrStateIO, "remove %s: %v", m.statePath, err)
	}
	return nil
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
