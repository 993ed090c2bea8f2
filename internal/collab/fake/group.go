package fake

import (
	"context"
	"sync"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
)

// Group is an in-memory collab.GroupHandle recording broadcasts made to it.
type Group struct {
	mu         sync.Mutex
	Broadcasts [][]byte
}

// NewGroup returns an empty Group.
func NewGroup() *Group { return &Group{} }

func (g *Group) Subscribe(model.CollabOrigin) (chan<- model.OutboundMessage, <-chan model.InboundMessage, error) {
	var out = make(chan model.OutboundMessage, 8)
	var in = make(chan model.InboundMessage, 8)
	return out, in, nil
}

func (g *Group) Broadcast(_ context.Context, update []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Broadcasts = append(g.Broadcasts, update)
	return nil
}

// BroadcastCount returns how many times Broadcast has been called.
func (g *Group) BroadcastCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Broadcasts)
}

// GroupManager is an in-memory collab.GroupManager.
type GroupManager struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewGroupManager returns an empty GroupManager.
func NewGroupManager() *GroupManager {
	return &GroupManager{groups: make(map[string]*Group)}
}

// GetGroup implements collab.GroupManager.
func (m *GroupManager) GetGroup(objectID string) (collab.GroupHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[objectID]
	if !ok {
		return nil, false
	}
	return g, true
}

// Ensure returns the Group for objectID, creating it if needed.
func (m *GroupManager) Ensure(objectID string) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[objectID]
	if !ok {
		g = NewGroup()
		m.groups[objectID] = g
	}
	return g
}
