package duplicate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/getflowy/collabsync/internal/collab/fake"
	"github.com/getflowy/collabsync/internal/duplicate"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageMentionDoc(pageID string) []byte {
	var blob = map[string]interface{}{
		"blocks": map[string]interface{}{
			"block-1": map[string]interface{}{
				"delta": []interface{}{
					map[string]interface{}{
						"insert": "@",
						"attributes": map[string]interface{}{
							"mention": map[string]interface{}{"type": "page", "page_id": pageID},
						},
					},
				},
			},
		},
		"text_map": map[string]interface{}{
			"text-1": []interface{}{
				map[string]interface{}{
					"insert": "@",
					"attributes": map[string]interface{}{
						"mention": map[string]interface{}{"type": "page", "page_id": pageID},
					},
				},
			},
		},
	}
	var raw, _ = json.Marshal(blob)
	return raw
}

func mentionedPageIDs(t *testing.T, raw []byte) []string {
	t.Helper()
	var blob map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &blob))
	var ids []string
	var blocks, _ = blob["blocks"].(map[string]interface{})
	for _, b := range blocks {
		var block, _ = b.(map[string]interface{})
		var delta, _ = block["delta"].([]interface{})
		for _, d := range delta {
			var op, _ = d.(map[string]interface{})
			var attrs, _ = op["attributes"].(map[string]interface{})
			var mention, _ = attrs["mention"].(map[string]interface{})
			if pid, ok := mention["page_id"].(string); ok {
				ids = append(ids, pid)
			}
		}
	}
	var textMap, _ = blob["text_map"].(map[string]interface{})
	for _, runs := range textMap {
		var deltas, _ = runs.([]interface{})
		for _, d := range deltas {
			var op, _ = d.(map[string]interface{})
			var attrs, _ = op["attributes"].(map[string]interface{})
			var mention, _ = attrs["mention"].(map[string]interface{})
			if pid, ok := mention["page_id"].(string); ok {
				ids = append(ids, pid)
			}
		}
	}
	return ids
}

type harness struct {
	storage *fake.Storage
	groups  *fake.GroupManager
	publish *fake.PublishSource
	folder  *fake.FolderMutator
	wsdb    *fake.WorkspaceDatabaseMutator
	dup     *duplicate.Duplicator
}

func newHarness() *harness {
	var h = &harness{
		storage: fake.NewStorage(),
		groups:  fake.NewGroupManager(),
		publish: fake.NewPublishSource(),
		folder:  fake.NewFolderMutator(),
		wsdb:    fake.NewWorkspaceDatabaseMutator(),
	}
	h.dup = duplicate.New(h.storage, h.groups, h.publish, h.folder, h.wsdb, nil)
	return h
}

func meta(name string) []byte {
	var m, _ = json.Marshal(map[string]string{"name": name})
	return m
}

// TestDuplicate_DocumentCycle: doc A mentions B, B mentions A;
// both published. Duplicating A must produce exactly two new documents with
// mutually rewritten mentions, no workspace databases, and one folder
// broadcast.
func TestDuplicate_DocumentCycle(t *testing.T) {
	var h = newHarness()
	h.publish.Publish("view-a", meta("A"), pageMentionDoc("view-b"))
	h.publish.Publish("view-b", meta("B"), pageMentionDoc("view-a"))
	h.groups.Ensure("ws-1")

	var err = h.dup.Duplicate(context.Background(), "ws-1", "dest-parent", "user-1", "view-a", model.CollabTypeDocument)
	require.NoError(t, err)

	var inserted = h.folder.InsertedViews()
	require.Len(t, inserted, 2, "exactly two document inserts")

	var byID = map[string]model.View{}
	for _, v := range inserted {
		byID[v.ID] = v
	}
	var root = inserted[0]
	require.Len(t, root.Children, 1)
	var childID = root.Children[0]
	var child, ok = byID[childID]
	require.True(t, ok)
	assert.Contains(t, child.Children, root.ID, "B' must mention A' back")

	assert.Empty(t, h.wsdb.Links, "workspace_databases empty")
	assert.Equal(t, 1, h.groups.Ensure("ws-1").BroadcastCount(), "exactly one folder broadcast")
}

// TestDuplicate_UnpublishedMentionLeftBroken: doc A mentions B, which was
// never published. After duplication A' still carries B's original id.
// duplicated_refs is internal to the duplicator and is not inspected here.
func TestDuplicate_UnpublishedMentionLeftBroken(t *testing.T) {
	var h = newHarness()
	h.publish.Publish("view-a", meta("A"), pageMentionDoc("view-b-unpublished"))
	h.groups.Ensure("ws-1")

	var err = h.dup.Duplicate(context.Background(), "ws-1", "dest-parent", "user-1", "view-a", model.CollabTypeDocument)
	require.NoError(t, err)

	var inserted = h.folder.InsertedViews()
	require.Len(t, inserted, 1, "unpublished mention target is never copied")

	var encoded, getErr = h.storage.GetLatestEncoded(context.Background(), "user-1", "ws-1", inserted[0].ID, model.CollabTypeDocument)
	require.NoError(t, getErr)

	var ids = mentionedPageIDs(t, encoded.DocStateV1)
	for _, id := range ids {
		assert.Equal(t, "view-b-unpublished", id, "broken mention keeps its original source id")
	}
}

func databaseBlob(t *testing.T, rowIDs []string) []byte {
	t.Helper()
	var rows = map[string][]byte{}
	for _, id := range rowIDs {
		var row = map[string]interface{}{"data": map[string]interface{}{"id": id, "database_id": "src-db"}}
		var raw, err = json.Marshal(row)
		require.NoError(t, err)
		rows[id] = raw
	}
	var dbDoc = map[string]interface{}{
		"fields": map[string]interface{}{"id": "src-db"},
		"views": []interface{}{
			map[string]interface{}{"row_orders": toInterfaceSlice(rowIDs)},
		},
	}
	var dbRaw, err = json.Marshal(dbDoc)
	require.NoError(t, err)

	var env = map[string]interface{}{"database": dbRaw, "rows": rows}
	var envRaw, envErr = json.Marshal(env)
	require.NoError(t, envErr)
	return envRaw
}

func toInterfaceSlice(ss []string) []interface{} {
	var out = make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// TestDuplicate_DatabaseWithRows: a published Grid view backed by a
// database with 3 rows. Expect one new database id, one new view id, 3 new
// row collabs with rewritten ids, and workspace_databases carrying exactly
// one entry.
func TestDuplicate_DatabaseWithRows(t *testing.T) {
	var h = newHarness()
	h.publish.Publish("grid-1", meta("Grid"), databaseBlob(t, []string{"row-1", "row-2", "row-3"}))
	h.groups.Ensure("ws-1")

	var err = h.dup.Duplicate(context.Background(), "ws-1", "dest-parent", "user-1", "grid-1", model.CollabTypeDatabase)
	require.NoError(t, err)

	var inserted = h.folder.InsertedViews()
	require.Len(t, inserted, 1)
	assert.Equal(t, model.ViewLayoutGrid, inserted[0].Layout)

	require.Len(t, h.wsdb.Links, 1, "exactly one new database id")
	for dbID, viewIDs := range h.wsdb.Links {
		assert.NotEqual(t, "src-db", dbID)
		assert.Equal(t, []string{inserted[0].ID}, viewIDs)
	}

	// The database collab, its 3 copied rows, the mutated folder, and the
	// mutated workspace-database collab are each persisted once.
	assert.Equal(t, 6, h.storage.Len())
}

// TestDuplicate_RecordNotFound_RootMiss: duplicating an unpublished root
// view surfaces RecordNotFound, not Unhandled.
func TestDuplicate_RecordNotFound_RootMiss(t *testing.T) {
	var h = newHarness()
	var err = h.dup.Duplicate(context.Background(), "ws-1", "dest-parent", "user-1", "missing-view", model.CollabTypeDocument)
	require.Error(t, err)
	var notFound *model.ErrRecordNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing-view", notFound.ViewID)
}

// TestDuplicate_SelfCycleTerminates: a document that mentions
// itself must not infinitely recurse, and must be copied exactly once.
func TestDuplicate_SelfCycleTerminates(t *testing.T) {
	var h = newHarness()
	h.publish.Publish("view-self", meta("Self"), pageMentionDoc("view-self"))
	h.groups.Ensure("ws-1")

	var err = h.dup.Duplicate(context.Background(), "ws-1", "dest-parent", "user-1", "view-self", model.CollabTypeDocument)
	require.NoError(t, err)

	assert.Len(t, h.folder.InsertedViews(), 1, "self-referencing source is copied exactly once")
}
