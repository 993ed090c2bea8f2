package collab

import (
	"context"

	"github.com/getflowy/collabsync/internal/model"
)

// FolderMutator applies structural folder-tree mutations (view inserts)
// through the host CRDT library and returns the id of the folder collab it
// mutated along with the resulting encoded update, for persistence through
// Storage and broadcast through GroupManager. The folder collab's object id
// belongs to the host library (it owns the workspace's folder replica), so
// the mutator reports it rather than the core guessing. Folder CRDT
// internals are a non-goal of this core; production wires a concrete type
// backed by the host library.
type FolderMutator interface {
	InsertViews(ctx context.Context, workspaceID, parentViewID string, views []model.View) (objectID string, update []byte, err error)
}

// WorkspaceDatabaseMutator appends database-to-view links for a duplicated
// database through its own CRDT-backed metadata API, reporting the
// workspace-database collab's object id the same way FolderMutator does.
type WorkspaceDatabaseMutator interface {
	LinkDatabaseViews(ctx context.Context, workspaceID, databaseID string, viewIDs []string) (objectID string, update []byte, err error)
}
