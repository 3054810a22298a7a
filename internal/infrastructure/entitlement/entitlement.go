// Package entitlement answers whether a tenant may watch a given stream.
package entitlement

import "sync"

// Authorizer is consulted before a stream subscription is accepted.
type Authorizer interface {
	AllowStream(tenantID, streamID string) bool
}

// Wildcard entitles a tenant to every stream.
const Wildcard = "*"

// Static is an in-memory tenant → stream table, loaded from configuration.
type Static struct {
	mu      sync.RWMutex
	streams map[string]map[string]struct{}
}

func NewStatic(entitlements map[string][]string) *Static {
	s := &Static{
		streams: make(map[string]map[string]struct{}, len(entitlements)),
	}
	for tenantID, streamIDs := range entitlements {
		set := make(map[string]struct{}, len(streamIDs))
		for _, id := range streamIDs {
			set[id] = struct{}{}
		}
		s.streams[tenantID] = set
	}
	return s
}

func (s *Static) AllowStream(tenantID, streamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.streams[tenantID]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok = set[streamID]
	return ok
}

// Grant adds a stream to a tenant's entitlement set.
func (s *Static) Grant(tenantID, streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.streams[tenantID]
	if !ok {
		set = make(map[string]struct{})
		s.streams[tenantID] = set
	}
	set[streamID] = struct{}{}
}

// Revoke removes a stream from a tenant's entitlement set.
func (s *Static) Revoke(tenantID, streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.streams[tenantID]; ok {
		delete(set, streamID)
		if len(set) == 0 {
			delete(s.streams, tenantID)
		}
	}
}
