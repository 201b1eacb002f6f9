package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

const memorySchema = `
CREATE TABLE IF NOT EXISTS hosts (
	key TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	port INTEGER NOT NULL,
	user TEXT NOT NULL,
	os TEXT NOT NULL DEFAULT '',
	kernel TEXT NOT NULL DEFAULT '',
	cpu_model TEXT NOT NULL DEFAULT '',
	memory_total TEXT NOT NULL DEFAULT '',
	first_seen TEXT NOT NULL,
	last_seen TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_key TEXT NOT NULL,
	turn_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	intent TEXT NOT NULL,
	command TEXT NOT NULL,
	origin TEXT NOT NULL,
	risk TEXT NOT NULL,
	outcome TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	output TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_host_idx ON turns(host_key, id);
`

// SQLiteStore keeps host memory in a single database file. When the
// database cannot be opened or initialised the store silently degrades to
// the JSON file backend in the same directory rather than losing turns.
type SQLiteStore struct {
	db       *sql.DB
	maxTurns int
	mu       sync.Mutex
	fallback *FileStore
}

// DatabaseFileName is the sqlite file created under the memory directory.
const DatabaseFileName = "memory.db"

// NewSQLiteStore opens (or creates) dir/memory.db. It never fails: on any
// open or schema error the returned store routes everything to a FileStore
// rooted at the same directory.
func NewSQLiteStore(dir string, maxTurns int) *SQLiteStore {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMemoryMaxTurns
	}
	store := &SQLiteStore{maxTurns: maxTurns, fallback: NewFileStore(dir, maxTurns)}
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return store
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, DatabaseFileName))
	if err != nil {
		return store
	}
	if _, err := db.Exec(memorySchema); err != nil {
		db.Close()
		return store
	}
	store.db = db
	return store
}

// Degraded reports whether the store is running on the file fallback.
func (s *SQLiteStore) Degraded() bool {
	return s.db == nil
}

// Close releases the database handle. Safe on a degraded store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements ports.MemoryStore.
func (s *SQLiteStore) Append(key domain.HostKey, turn domain.Turn) error {
	if s.db == nil {
		return s.fallback.Append(key, turn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	defer tx.Rollback()

	stamp := turn.Timestamp.Format(domain.TimestampFormat)
	if err := ensureHost(tx, key, stamp); err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO turns
			(host_key, turn_id, timestamp, intent, command, origin, risk, outcome, exit_code, output, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.String(), turn.ID, stamp, turn.Intent, turn.Command,
		string(turn.Origin), string(turn.Risk), string(turn.Outcome),
		turn.ExitCode, turn.Output, turn.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	_, err = tx.Exec(
		`DELETE FROM turns WHERE host_key = ? AND id NOT IN
			(SELECT id FROM turns WHERE host_key = ? ORDER BY id DESC LIMIT ?)`,
		key.String(), key.String(), s.maxTurns,
	)
	if err != nil {
		return fmt.Errorf("trim turns: %w", err)
	}
	if _, err := tx.Exec(`UPDATE hosts SET last_seen = ? WHERE key = ?`, stamp, key.String()); err != nil {
		return fmt.Errorf("touch host: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentContext implements ports.MemoryStore.
func (s *SQLiteStore) RecentContext(key domain.HostKey, limit int) ([]domain.Turn, error) {
	if s.db == nil {
		return s.fallback.RecentContext(key, limit)
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT turn_id, timestamp, intent, command, origin, risk, outcome, exit_code, output, duration_ms
		 FROM turns WHERE host_key = ? ORDER BY id DESC LIMIT ?`,
		key.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}
	reverseTurns(turns)
	return turns, nil
}

// Profile implements ports.MemoryStore.
func (s *SQLiteStore) Profile(key domain.HostKey) (domain.HostProfile, error) {
	if s.db == nil {
		return s.fallback.Profile(key)
	}
	row := s.db.QueryRow(
		`SELECT os, kernel, cpu_model, memory_total, first_seen, last_seen FROM hosts WHERE key = ?`,
		key.String(),
	)
	profile := domain.HostProfile{Key: key}
	var firstSeen, lastSeen string
	err := row.Scan(
		&profile.Facts.OS, &profile.Facts.Kernel,
		&profile.Facts.CPUModel, &profile.Facts.MemoryTotal,
		&firstSeen, &lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HostProfile{}, domain.ErrHostUnknown
	}
	if err != nil {
		return domain.HostProfile{}, fmt.Errorf("load host profile: %w", err)
	}
	profile.FirstSeen = parseStamp(firstSeen)
	profile.LastSeen = parseStamp(lastSeen)

	rows, err := s.db.Query(
		`SELECT turn_id, timestamp, intent, command, origin, risk, outcome, exit_code, output, duration_ms
		 FROM turns WHERE host_key = ? ORDER BY id ASC`,
		key.String(),
	)
	if err != nil {
		return domain.HostProfile{}, fmt.Errorf("load host turns: %w", err)
	}
	defer rows.Close()
	profile.Turns, err = collectTurns(rows)
	if err != nil {
		return domain.HostProfile{}, err
	}
	return profile, nil
}

// RecordFacts implements ports.MemoryStore.
func (s *SQLiteStore) RecordFacts(key domain.HostKey, facts domain.HostFacts) error {
	if s.db == nil {
		return s.fallback.RecordFacts(key, facts)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().UTC().Format(domain.TimestampFormat)
	_, err := s.db.Exec(
		`INSERT INTO hosts (key, address, port, user, os, kernel, cpu_model, memory_total, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			os = excluded.os,
			kernel = excluded.kernel,
			cpu_model = excluded.cpu_model,
			memory_total = excluded.memory_total,
			last_seen = excluded.last_seen`,
		key.String(), key.Address, key.Port, key.User,
		facts.OS, facts.Kernel, facts.CPUModel, facts.MemoryTotal,
		stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("record host facts: %w", err)
	}
	return nil
}

// Hosts implements ports.MemoryStore, most recently seen first.
func (s *SQLiteStore) Hosts() ([]domain.HostProfile, error) {
	if s.db == nil {
		return s.fallback.Hosts()
	}
	rows, err := s.db.Query(`SELECT key FROM hosts ORDER BY last_seen DESC, key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list hosts: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	profiles := make([]domain.HostProfile, 0, len(keys))
	for _, k := range keys {
		key, err := keyFromStorage(k)
		if err != nil {
			continue
		}
		profile, err := s.Profile(key)
		if err != nil {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// Search implements ports.MemoryStore.
func (s *SQLiteStore) Search(key domain.HostKey, keyword string) ([]domain.Turn, error) {
	if s.db == nil {
		return s.fallback.Search(key, keyword)
	}
	needle := "%" + keyword + "%"
	rows, err := s.db.Query(
		`SELECT turn_id, timestamp, intent, command, origin, risk, outcome, exit_code, output, duration_ms
		 FROM turns WHERE host_key = ? AND (intent LIKE ? OR command LIKE ?) ORDER BY id ASC`,
		key.String(), needle, needle,
	)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()
	return collectTurns(rows)
}

// Forget implements ports.MemoryStore.
func (s *SQLiteStore) Forget(key domain.HostKey) error {
	if s.db == nil {
		return s.fallback.Forget(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("forget host: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM turns WHERE host_key = ?`, key.String()); err != nil {
		return fmt.Errorf("forget host: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM hosts WHERE key = ?`, key.String()); err != nil {
		return fmt.Errorf("forget host: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("forget host: %w", err)
	}
	return nil
}

func ensureHost(tx *sql.Tx, key domain.HostKey, stamp string) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO hosts (key, address, port, user, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key.String(), key.Address, key.Port, key.User, stamp, stamp,
	)
	if err != nil {
		return fmt.Errorf("ensure host row: %w", err)
	}
	return nil
}

func collectTurns(rows *sql.Rows) ([]domain.Turn, error) {
	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var stamp, origin, risk, outcome string
		err := rows.Scan(
			&t.ID, &stamp, &t.Intent, &t.Command,
			&origin, &risk, &outcome,
			&t.ExitCode, &t.Output, &t.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = parseStamp(stamp)
		t.Origin = domain.Origin(origin)
		t.Risk = domain.RiskTier(risk)
		t.Outcome = domain.TurnOutcome(outcome)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan turns: %w", err)
	}
	return turns, nil
}

func reverseTurns(turns []domain.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(domain.TimestampFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func keyFromStorage(s string) (domain.HostKey, error) {
	return domain.ParseStoredHostKey(s)
}

var _ ports.MemoryStore = (*SQLiteStore)(nil)
