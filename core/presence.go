package core

import (
	"context"
	"fmt"
	"sync"
)

// connSet holds the live connection IDs of one user. Operations on different
// users touch different connSets and therefore never contend with each other.
type connSet struct {
	mu    sync.Mutex
	conns map[string]struct{}
	// gone marks a set that has been unlinked from the registry. A Connect
	// that observes it must retry against a fresh set.
	gone bool
}

// PresenceRegistry tracks which users have at least one live connection.
// The registry-level mutex is taken only to link and unlink per-user sets;
// connection churn within a user is serialized per user only.
type PresenceRegistry struct {
	mu        sync.Mutex
	sets      *SyncMap[string, *connSet]
	relations PresenceRelationSource
}

func NewPresenceRegistry(relations PresenceRelationSource) *PresenceRegistry {
	return &PresenceRegistry{
		sets:      NewSyncMap[string, *connSet](),
		relations: relations,
	}
}

// Connect records a connection for the user and reports whether it was the
// user's first, i.e. the user just came online.
func (r *PresenceRegistry) Connect(userID, connID string) bool {
	for {
		set, ok := r.sets.Load(userID)
		if !ok {
			r.mu.Lock()
			set, ok = r.sets.Load(userID)
			if !ok {
				set = &connSet{conns: make(map[string]struct{})}
				r.sets.Store(userID, set)
			}
			r.mu.Unlock()
		}

		set.mu.Lock()
		if set.gone {
			set.mu.Unlock()
			continue
		}
		if _, dup := set.conns[connID]; dup {
			set.mu.Unlock()
			return false
		}
		set.conns[connID] = struct{}{}
		first := len(set.conns) == 1
		set.mu.Unlock()
		return first
	}
}

// Disconnect removes a connection and reports whether it was the user's
// last, i.e. the user just went offline. An empty set is unlinked from the
// registry so that offline users occupy no memory.
func (r *PresenceRegistry) Disconnect(userID, connID string) bool {
	set, ok := r.sets.Load(userID)
	if !ok {
		return false
	}

	set.mu.Lock()
	delete(set.conns, connID)
	last := len(set.conns) == 0
	if last {
		set.gone = true
	}
	set.mu.Unlock()

	if last {
		r.mu.Lock()
		if cur, ok := r.sets.Load(userID); ok && cur == set {
			r.sets.Delete(userID)
		}
		r.mu.Unlock()
	}
	return last
}

func (r *PresenceRegistry) Online(userID string) bool {
	set, ok := r.sets.Load(userID)
	if !ok {
		return false
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return !set.gone && len(set.conns) > 0
}

// Connections returns a snapshot of the user's live connection IDs.
func (r *PresenceRegistry) Connections(userID string) []string {
	set, ok := r.sets.Load(userID)
	if !ok {
		return nil
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	if set.gone {
		return nil
	}
	ids := make([]string, 0, len(set.conns))
	for id := range set.conns {
		ids = append(ids, id)
	}
	return ids
}

// FilterOnline returns the subset of userIDs that are currently online.
func (r *PresenceRegistry) FilterOnline(userIDs []string) []string {
	var online []string
	for _, id := range userIDs {
		if r.Online(id) {
			online = append(online, id)
		}
	}
	return online
}

// RelatedOnline returns the online users related to userID through a shared
// conversation, group or channel. The relation set is re-read from the store
// on every call.
func (r *PresenceRegistry) RelatedOnline(ctx context.Context, userID string) ([]string, error) {
	related, err := r.relations.RelatedUserIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("RelatedUserIDs: %w", err)
	}
	return r.FilterOnline(related), nil
}
