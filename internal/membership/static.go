package membership

import (
	"context"
	"sync"
)

// Static is a fixed in-memory directory, used in tests and local development.
type Static struct {
	mu      sync.RWMutex
	members map[string]Member
	rosters map[string][]string // owner id -> accepted member ids
}

func NewStatic() *Static {
	return &Static{
		members: make(map[string]Member),
		rosters: make(map[string][]string),
	}
}

// AddMember registers a member identity.
func (s *Static) AddMember(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.UserID] = m
}

// Accept records the mutual acceptance between two members.
func (s *Static) Accept(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[a] = append(s.rosters[a], b)
	s.rosters[b] = append(s.rosters[b], a)
}

func (s *Static) ListAcceptedMembers(ctx context.Context, ownerID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Member
	for _, id := range s.rosters[ownerID] {
		if m, ok := s.members[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Static) Lookup(ctx context.Context, userID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[userID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &m, nil
}
