// Package memory implements the per-host memory store: probed facts plus
// a bounded, append-only turn history per host key. Three backends share
// one contract; the engine never knows which one it is talking to.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

type hostLane struct {
	mu      sync.Mutex
	profile domain.HostProfile
}

// Store keeps profiles in process memory. Every host gets its own lane
// with its own lock, so appends on different hosts run in parallel while
// appends on one host stay strictly ordered.
type Store struct {
	mu       sync.Mutex // guards lanes map shape only
	lanes    map[string]*hostLane
	maxTurns int
}

// NewStore builds an in-memory store keeping at most maxTurns per host.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMemoryMaxTurns
	}
	return &Store{lanes: map[string]*hostLane{}, maxTurns: maxTurns}
}

func (s *Store) lane(key domain.HostKey) *hostLane {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if lane, ok := s.lanes[k]; ok {
		return lane
	}
	lane := &hostLane{profile: domain.HostProfile{Key: key, FirstSeen: time.Now().UTC()}}
	s.lanes[k] = lane
	return lane
}

func (s *Store) peek(key domain.HostKey) (*hostLane, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lane, ok := s.lanes[key.String()]
	return lane, ok
}

// Append implements ports.MemoryStore. Turns past the cap evict oldest
// first; the newest turn is never the one dropped.
func (s *Store) Append(key domain.HostKey, turn domain.Turn) error {
	lane := s.lane(key)
	lane.mu.Lock()
	defer lane.mu.Unlock()
	lane.profile.Turns = appendBounded(lane.profile.Turns, turn, s.maxTurns)
	lane.profile.LastSeen = turn.Timestamp
	return nil
}

// RecentContext implements ports.MemoryStore.
func (s *Store) RecentContext(key domain.HostKey, limit int) ([]domain.Turn, error) {
	lane, ok := s.peek(key)
	if !ok {
		return nil, nil
	}
	lane.mu.Lock()
	defer lane.mu.Unlock()
	return recentWindow(lane.profile.Turns, limit), nil
}

// Profile implements ports.MemoryStore.
func (s *Store) Profile(key domain.HostKey) (domain.HostProfile, error) {
	lane, ok := s.peek(key)
	if !ok {
		return domain.HostProfile{}, domain.ErrHostUnknown
	}
	lane.mu.Lock()
	defer lane.mu.Unlock()
	return copyProfile(lane.profile), nil
}

// RecordFacts implements ports.MemoryStore.
func (s *Store) RecordFacts(key domain.HostKey, facts domain.HostFacts) error {
	lane := s.lane(key)
	lane.mu.Lock()
	defer lane.mu.Unlock()
	lane.profile.Facts = facts
	lane.profile.LastSeen = time.Now().UTC()
	return nil
}

// Hosts implements ports.MemoryStore, most recently seen first.
func (s *Store) Hosts() ([]domain.HostProfile, error) {
	s.mu.Lock()
	lanes := make([]*hostLane, 0, len(s.lanes))
	for _, lane := range s.lanes {
		lanes = append(lanes, lane)
	}
	s.mu.Unlock()

	profiles := make([]domain.HostProfile, 0, len(lanes))
	for _, lane := range lanes {
		lane.mu.Lock()
		profiles = append(profiles, copyProfile(lane.profile))
		lane.mu.Unlock()
	}
	sortProfiles(profiles)
	return profiles, nil
}

// Search implements ports.MemoryStore.
func (s *Store) Search(key domain.HostKey, keyword string) ([]domain.Turn, error) {
	lane, ok := s.peek(key)
	if !ok {
		return nil, nil
	}
	lane.mu.Lock()
	defer lane.mu.Unlock()
	return filterTurns(lane.profile.Turns, keyword), nil
}

// Forget implements ports.MemoryStore.
func (s *Store) Forget(key domain.HostKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lanes, key.String())
	return nil
}

// appendBounded appends and evicts FIFO past the cap.
func appendBounded(turns []domain.Turn, turn domain.Turn, max int) []domain.Turn {
	turns = append(turns, turn)
	if len(turns) > max {
		trimmed := make([]domain.Turn, max)
		copy(trimmed, turns[len(turns)-max:])
		return trimmed
	}
	return turns
}

// recentWindow returns the newest limit turns, oldest of the window first.
func recentWindow(turns []domain.Turn, limit int) []domain.Turn {
	if limit <= 0 || len(turns) == 0 {
		return nil
	}
	if limit > len(turns) {
		limit = len(turns)
	}
	window := make([]domain.Turn, limit)
	copy(window, turns[len(turns)-limit:])
	return window
}

func filterTurns(turns []domain.Turn, keyword string) []domain.Turn {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}
	var hits []domain.Turn
	for _, t := range turns {
		if strings.Contains(strings.ToLower(t.Intent), needle) ||
			strings.Contains(strings.ToLower(t.Command), needle) {
			hits = append(hits, t)
		}
	}
	return hits
}

func copyProfile(p domain.HostProfile) domain.HostProfile {
	out := p
	out.Turns = append([]domain.Turn(nil), p.Turns...)
	return out
}

func sortProfiles(profiles []domain.HostProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].LastSeen.Equal(profiles[j].LastSeen) {
			return profiles[i].Key.String() < profiles[j].Key.String()
		}
		return profiles[i].LastSeen.After(profiles[j].LastSeen)
	})
}

var _ ports.MemoryStore = (*Store)(nil)
