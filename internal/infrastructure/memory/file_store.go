package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// FileStore persists one JSON document per host under dir. The filename is
// derived from the host key with dots and colons flattened to underscores,
// so "192.168.1.10:22:root" lands in 192_168_1_10_22_root.json.
type FileStore struct {
	dir      string
	maxTurns int

	mu    sync.Mutex // guards locks map shape only
	locks map[string]*sync.Mutex
}

// NewFileStore builds a JSON-file store rooted at dir.
func NewFileStore(dir string, maxTurns int) *FileStore {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMemoryMaxTurns
	}
	return &FileStore{dir: dir, maxTurns: maxTurns, locks: map[string]*sync.Mutex{}}
}

// Dir reports where host documents live.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) hostLock(key domain.HostKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if l, ok := s.locks[k]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[k] = l
	return l
}

func (s *FileStore) hostPath(key domain.HostKey) string {
	return filepath.Join(s.dir, hostFileName(key))
}

// Append implements ports.MemoryStore.
func (s *FileStore) Append(key domain.HostKey, turn domain.Turn) error {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, found, err := s.load(key)
	if err != nil {
		return err
	}
	if !found {
		profile = domain.HostProfile{Key: key, FirstSeen: time.Now().UTC()}
	}
	profile.Turns = appendBounded(profile.Turns, turn, s.maxTurns)
	profile.LastSeen = turn.Timestamp
	return s.save(key, profile)
}

// RecentContext implements ports.MemoryStore.
func (s *FileStore) RecentContext(key domain.HostKey, limit int) ([]domain.Turn, error) {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, found, err := s.load(key)
	if err != nil || !found {
		return nil, err
	}
	return recentWindow(profile.Turns, limit), nil
}

// Profile implements ports.MemoryStore.
func (s *FileStore) Profile(key domain.HostKey) (domain.HostProfile, error) {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, found, err := s.load(key)
	if err != nil {
		return domain.HostProfile{}, err
	}
	if !found {
		return domain.HostProfile{}, domain.ErrHostUnknown
	}
	return profile, nil
}

// RecordFacts implements ports.MemoryStore.
func (s *FileStore) RecordFacts(key domain.HostKey, facts domain.HostFacts) error {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, found, err := s.load(key)
	if err != nil {
		return err
	}
	if !found {
		profile = domain.HostProfile{Key: key, FirstSeen: time.Now().UTC()}
	}
	profile.Facts = facts
	profile.LastSeen = time.Now().UTC()
	return s.save(key, profile)
}

// Hosts implements ports.MemoryStore, most recently seen first.
func (s *FileStore) Hosts() ([]domain.HostProfile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list memory dir: %w", err)
	}

	var profiles []domain.HostProfile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		profile, ok := s.readDocument(filepath.Join(s.dir, entry.Name()))
		if !ok {
			continue
		}
		profiles = append(profiles, profile)
	}
	sortProfiles(profiles)
	return profiles, nil
}

// Search implements ports.MemoryStore.
func (s *FileStore) Search(key domain.HostKey, keyword string) ([]domain.Turn, error) {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	profile, found, err := s.load(key)
	if err != nil || !found {
		return nil, err
	}
	return filterTurns(profile.Turns, keyword), nil
}

// Forget implements ports.MemoryStore.
func (s *FileStore) Forget(key domain.HostKey) error {
	lock := s.hostLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.hostPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("forget host %s: %w", key.String(), err)
	}
	return nil
}

func (s *FileStore) load(key domain.HostKey) (domain.HostProfile, bool, error) {
	data, err := os.ReadFile(s.hostPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.HostProfile{}, false, nil
	}
	if err != nil {
		return domain.HostProfile{}, false, fmt.Errorf("read host memory: %w", err)
	}
	var profile domain.HostProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.HostProfile{}, false, fmt.Errorf("decode host memory %s: %w", key.String(), err)
	}
	profile.Key = key
	return profile, true, nil
}

// readDocument is the tolerant variant used when listing hosts; a single
// damaged file should not hide every other host.
func (s *FileStore) readDocument(path string) (domain.HostProfile, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.HostProfile{}, false
	}
	var profile domain.HostProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.HostProfile{}, false
	}
	return profile, true
}

// save writes the document through a temp file and rename so a crash mid
// write never leaves a truncated host history behind.
func (s *FileStore) save(key domain.HostKey, profile domain.HostProfile) error {
	if err := os.MkdirAll(s.dir, domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encode host memory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, hostFileName(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage host memory: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage host memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stage host memory: %w", err)
	}
	if err := os.Chmod(tmpName, domain.SecureFilePermissions); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stage host memory: %w", err)
	}
	if err := os.Rename(tmpName, s.hostPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write host memory: %w", err)
	}
	return nil
}

// hostFileName flattens a host key into a portable filename.
func hostFileName(key domain.HostKey) string {
	replacer := strings.NewReplacer(".", "_", ":", "_", "/", "_", "@", "_")
	return replacer.Replace(key.String()) + ".json"
}

var _ ports.MemoryStore = (*FileStore)(nil)
