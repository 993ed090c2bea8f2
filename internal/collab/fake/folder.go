package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/getflowy/collabsync/internal/model"
)

// FolderMutator is an in-memory collab.FolderMutator. InsertViews records
// every call and returns a deterministic, inspectable "update" describing
// what was inserted, rather than a real CRDT encoding. The folder collab's
// object id is reported as the workspace id, the per-workspace-singleton
// convention production folder implementations follow.
type FolderMutator struct {
	mu    sync.Mutex
	Calls []FolderInsertCall
}

// FolderInsertCall records one InsertViews invocation.
type FolderInsertCall struct {
	WorkspaceID  string
	ParentViewID string
	Views        []model.View
}

// NewFolderMutator returns an empty FolderMutator.
func NewFolderMutator() *FolderMutator { return &FolderMutator{} }

func (f *FolderMutator) InsertViews(_ context.Context, workspaceID, parentViewID string, views []model.View) (string, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FolderInsertCall{WorkspaceID: workspaceID, ParentViewID: parentViewID, Views: views})
	return workspaceID, []byte(fmt.Sprintf("folder-update:%d", len(f.Calls))), nil
}

// InsertedViews flattens every View inserted across all calls, in order.
func (f *FolderMutator) InsertedViews() []model.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.View
	for _, c := range f.Calls {
		out = append(out, c.Views...)
	}
	return out
}

// WorkspaceDatabaseMutator is an in-memory collab.WorkspaceDatabaseMutator.
type WorkspaceDatabaseMutator struct {
	mu    sync.Mutex
	Links map[string][]string
}

// NewWorkspaceDatabaseMutator returns an empty WorkspaceDatabaseMutator.
func NewWorkspaceDatabaseMutator() *WorkspaceDatabaseMutator {
	return &WorkspaceDatabaseMutator{Links: make(map[string][]string)}
}

func (w *WorkspaceDatabaseMutator) LinkDatabaseViews(_ context.Context, workspaceID, databaseID string, viewIDs []string) (string, []byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Links[databaseID] = append(append([]string{}, w.Links[databaseID]...), viewIDs...)
	return "wsdb:" + workspaceID, []byte(fmt.Sprintf("wsdb-update:%s", databaseID)), nil
}
