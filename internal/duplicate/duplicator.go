// Package duplicate implements the Publish Duplicator: a recursive
// deep-copy of a published view subtree into a destination workspace,
// rewriting cross-references as it goes. Unlike the observer/sink/protocol
// packages it is not a long-lived task; one Duplicate call is a single
// bounded call graph.
package duplicate

import (
	"context"
	"fmt"
	"time"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/trace"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// UnhandledError wraps any storage or parsing error surfaced by Duplicate,
// distinguishing it from the sentinel *model.ErrRecordNotFound. The
// duplicator propagates exactly these two kinds to its caller.
type UnhandledError struct{ cause error }

func (e *UnhandledError) Error() string { return fmt.Sprintf("unhandled: %s", e.cause) }
func (e *UnhandledError) Unwrap() error { return e.cause }

func unhandled(err error) error {
	if err == nil {
		return nil
	}
	return &UnhandledError{cause: err}
}

// publishedMeta is the metadata_json sidecar returned alongside every
// published blob, carrying the view attributes deep_copy needs to
// reconstruct a View without touching the blob itself.
type publishedMeta struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Extra string `json:"extra"`
}

// Duplicator holds the external collaborators used across duplication
// calls. It is safe for concurrent use; all per-call state lives in runState.
type Duplicator struct {
	storage collab.Storage
	groups  collab.GroupManager
	publish collab.PublishSource
	folder  collab.FolderMutator
	wsdb    collab.WorkspaceDatabaseMutator
	log     *log.Entry
}

// New returns a Duplicator wired to its external collaborators.
func New(
	storage collab.Storage,
	groups collab.GroupManager,
	publish collab.PublishSource,
	folder collab.FolderMutator,
	wsdb collab.WorkspaceDatabaseMutator,
	entry *log.Entry,
) *Duplicator {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Duplicator{storage: storage, groups: groups, publish: publish, folder: folder, wsdb: wsdb, log: entry}
}

// runState is the per-duplication working state, created fresh for each
// Duplicate call and discarded at the end of it.
type runState struct {
	// duplicatedRefs maps a source view id to the destination id it was
	// copied to, or to a nil pointer meaning "source was not published; do
	// not follow" (None). An absent key means "not yet visited".
	duplicatedRefs map[string]*string
	viewsToAdd     []model.View
	// workspaceDatabases maps a new database id to its ordered linked view ids.
	workspaceDatabases map[string][]string

	now              time.Time
	workspaceID      string
	destParentViewID string
	actorUID         string
}

// Duplicate deep-copies the published subtree rooted at publishViewID into
// destParentViewID within workspaceID, then persists and broadcasts the
// folder (and, if any databases were copied, workspace-database) mutation.
func (d *Duplicator) Duplicate(ctx context.Context, workspaceID, destParentViewID, actorUID, publishViewID string, collabType model.CollabType) error {
	var spanCtx, span = trace.New(ctx, "sync.duplicate", publishViewID)
	defer span()

	var st = &runState{
		duplicatedRefs:     make(map[string]*string),
		workspaceDatabases: make(map[string][]string),
		now:                time.Now(),
		workspaceID:        workspaceID,
		destParentViewID:   destParentViewID,
		actorUID:           actorUID,
	}

	var root, err = d.deepCopy(spanCtx, st, uuid.New().String(), publishViewID, collabType)
	if err != nil {
		return unhandled(err)
	}
	if root == nil {
		return &model.ErrRecordNotFound{ViewID: publishViewID}
	}
	root.ParentViewID = destParentViewID

	var allViews = append([]model.View{*root}, st.viewsToAdd...)
	var folderID string
	var folderUpdate []byte
	folderID, folderUpdate, err = d.folder.InsertViews(spanCtx, workspaceID, destParentViewID, allViews)
	if err != nil {
		return unhandled(err)
	}
	if err = d.persistAndBroadcast(spanCtx, st, folderID, model.CollabTypeFolder, folderUpdate); err != nil {
		return unhandled(err)
	}

	if len(st.workspaceDatabases) > 0 {
		for dbID, viewIDs := range st.workspaceDatabases {
			var wsdbID, wsUpdate, linkErr = d.wsdb.LinkDatabaseViews(spanCtx, workspaceID, dbID, viewIDs)
			if linkErr != nil {
				return unhandled(linkErr)
			}
			if err = d.persistAndBroadcast(spanCtx, st, wsdbID, model.CollabTypeWorkspaceDatabase, wsUpdate); err != nil {
				return unhandled(err)
			}
		}
	}
	return nil
}

func (d *Duplicator) persistAndBroadcast(ctx context.Context, st *runState, objectID string, ct model.CollabType, update []byte) error {
	if err := d.storage.InsertOrUpdateCollab(ctx, st.workspaceID, st.actorUID, collab.CollabParams{
		ObjectID:        objectID,
		EncodedCollabV1: update,
		CollabType:      ct,
	}, true); err != nil {
		return errors.Wrapf(err, "persist %s collab %s", ct, objectID)
	}
	if group, ok := d.groups.GetGroup(objectID); ok {
		if err := group.Broadcast(ctx, update); err != nil {
			d.log.WithError(err).WithField("object_id", objectID).Warn("broadcast after duplication failed")
		}
	}
	return nil
}

// deepCopy copies one published view and, transitively, the published views
// it references. It returns (nil, nil) both when the source was never
// published and when type isn't supported at this nesting; callers treat
// both as "leave untouched".
func (d *Duplicator) deepCopy(ctx context.Context, st *runState, newViewID, srcViewID string, ct model.CollabType) (*model.View, error) {
	var metaJSON, raw, ok, err = d.publish.SelectPublishedDataForViewID(ctx, srcViewID)
	if err != nil {
		return nil, errors.Wrapf(err, "select published data for view %s", srcViewID)
	}
	if !ok {
		st.duplicatedRefs[srcViewID] = nil
		return nil, nil
	}

	// Recorded before recursion: this is what makes deep_copy acyclic-safe.
	var dst = newViewID
	st.duplicatedRefs[srcViewID] = &dst

	var meta publishedMeta
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, errors.Wrapf(err, "decode metadata for view %s", srcViewID)
		}
	}

	switch ct {
	case model.CollabTypeDocument:
		return d.deepCopyDoc(ctx, st, newViewID, meta, raw)
	case model.CollabTypeDatabase:
		return d.deepCopyDatabase(ctx, st, newViewID, meta, raw)
	default:
		return nil, nil
	}
}

func (d *Duplicator) deepCopyDoc(ctx context.Context, st *runState, newViewID string, meta publishedMeta, raw []byte) (*model.View, error) {
	var blob, err = decodeDocBlob(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode document blob")
	}

	var children []string
	var addChild = func(id string) {
		for _, c := range children {
			if c == id {
				return
			}
		}
		children = append(children, id)
	}
	blob.RewriteMentions(func(pageID string) (string, bool) {
		if resolved, visited := st.duplicatedRefs[pageID]; visited {
			if resolved == nil {
				return pageID, false
			}
			addChild(*resolved)
			return *resolved, true
		}
		var childID = uuid.New().String()
		var child, childErr = d.deepCopy(ctx, st, childID, pageID, model.CollabTypeDocument)
		if childErr != nil {
			d.log.WithError(childErr).WithField("page_id", pageID).Warn("recursive duplication of mentioned page failed")
			return pageID, false
		}
		if child == nil {
			return pageID, false
		}
		child.ParentViewID = newViewID
		st.viewsToAdd = append(st.viewsToAdd, *child)
		addChild(child.ID)
		return child.ID, true
	})

	var encoded []byte
	encoded, err = blob.Encode()
	if err != nil {
		return nil, errors.Wrap(err, "encode document blob")
	}
	if err = d.storage.InsertOrUpdateCollab(ctx, st.workspaceID, st.actorUID, collab.CollabParams{
		ObjectID:        newViewID,
		EncodedCollabV1: encoded,
		CollabType:      model.CollabTypeDocument,
	}, true); err != nil {
		return nil, errors.Wrapf(err, "persist document collab %s", newViewID)
	}

	return &model.View{
		ID:        newViewID,
		Name:      meta.Name,
		Icon:      meta.Icon,
		Extra:     meta.Extra,
		Layout:    model.ViewLayoutDocument,
		CreatedAt: st.now,
		CreatedBy: st.actorUID,
		Children:  children,
	}, nil
}

func (d *Duplicator) deepCopyDatabase(ctx context.Context, st *runState, newViewID string, meta publishedMeta, raw []byte) (*model.View, error) {
	var env, err = decodeDatabaseEnvelope(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode database envelope")
	}

	var dbDoc map[string]interface{}
	if err = json.Unmarshal(env.Database, &dbDoc); err != nil {
		return nil, errors.Wrap(err, "decode database collab")
	}

	var newDatabaseID = uuid.New().String()
	setNestedString(dbDoc, []string{"fields", "id"}, newDatabaseID)

	if views, ok := dbDoc["views"].([]interface{}); ok {
		for _, v := range views {
			var view, vok = v.(map[string]interface{})
			if !vok {
				continue
			}
			var rowOrders, _ = view["row_orders"].([]interface{})
			var newRowOrders = make([]interface{}, 0, len(rowOrders))
			for _, ro := range rowOrders {
				var rowID, rok = ro.(string)
				if !rok {
					newRowOrders = append(newRowOrders, ro)
					continue
				}
				var rowRaw, present = env.Rows[rowID]
				if !present {
					newRowOrders = append(newRowOrders, ro)
					continue
				}
				var newRowID, rowErr = d.copyRow(ctx, st, newDatabaseID, rowRaw)
				if rowErr != nil {
					return nil, rowErr
				}
				newRowOrders = append(newRowOrders, newRowID)
			}
			view["row_orders"] = newRowOrders
		}
	}

	st.workspaceDatabases[newDatabaseID] = append(st.workspaceDatabases[newDatabaseID], newViewID)

	var dbEncoded []byte
	dbEncoded, err = json.Marshal(dbDoc)
	if err != nil {
		return nil, errors.Wrap(err, "encode database collab")
	}
	if err = d.storage.InsertOrUpdateCollab(ctx, st.workspaceID, st.actorUID, collab.CollabParams{
		ObjectID:        newViewID,
		EncodedCollabV1: dbEncoded,
		CollabType:      model.CollabTypeDatabase,
	}, true); err != nil {
		return nil, errors.Wrapf(err, "persist database collab %s", newViewID)
	}

	return &model.View{
		ID:        newViewID,
		Name:      meta.Name,
		Icon:      meta.Icon,
		Extra:     meta.Extra,
		Layout:    model.ViewLayoutGrid,
		CreatedAt: st.now,
		CreatedBy: st.actorUID,
	}, nil
}

// copyRow reassigns a row collab's id and database_id and persists it. Row
// contents beyond those two fields are not inspected or rewritten. See
// DESIGN.md on intra-row relation fields.
func (d *Duplicator) copyRow(ctx context.Context, st *runState, newDatabaseID string, rowRaw []byte) (string, error) {
	var rowDoc map[string]interface{}
	if err := json.Unmarshal(rowRaw, &rowDoc); err != nil {
		return "", errors.Wrap(err, "decode row collab")
	}
	var newRowID = uuid.New().String()
	setNestedString(rowDoc, []string{"data", "id"}, newRowID)
	setNestedString(rowDoc, []string{"data", "database_id"}, newDatabaseID)

	var encoded, err = json.Marshal(rowDoc)
	if err != nil {
		return "", errors.Wrap(err, "encode row collab")
	}
	if err = d.storage.InsertOrUpdateCollab(ctx, st.workspaceID, st.actorUID, collab.CollabParams{
		ObjectID:        newRowID,
		EncodedCollabV1: encoded,
		CollabType:      model.CollabTypeDatabaseRow,
	}, true); err != nil {
		return "", errors.Wrapf(err, "persist row collab %s", newRowID)
	}
	return newRowID, nil
}
