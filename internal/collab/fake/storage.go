package fake

import (
	"context"
	"sync"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
)

// Storage is an in-memory collab.Storage keyed by (workspaceID, objectID).
type Storage struct {
	mu   sync.Mutex
	rows map[string]collab.EncodedCollab
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{rows: make(map[string]collab.EncodedCollab)}
}

func key(workspaceID, objectID string) string { return workspaceID + "/" + objectID }

func (s *Storage) InsertOrUpdateCollab(_ context.Context, workspaceID, _ string, p collab.CollabParams, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key(workspaceID, p.ObjectID)] = collab.EncodedCollab{DocStateV1: p.EncodedCollabV1}
	return nil
}

func (s *Storage) GetLatestEncoded(_ context.Context, _, workspaceID, objectID string, _ model.CollabType) (collab.EncodedCollab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[key(workspaceID, objectID)], nil
}

// Put seeds a row directly, bypassing InsertOrUpdateCollab's signature.
func (s *Storage) Put(workspaceID, objectID string, enc collab.EncodedCollab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key(workspaceID, objectID)] = enc
}

// Len returns the number of distinct (workspaceID, objectID) rows stored.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
