// Package collab declares the external collaborators the synchronization
// core is built against: durable storage, the live collaboration group
// manager, and the published-data source. The core never implements these
// itself; production wires a concrete type, tests wire collab/fake.
package collab

import (
	"context"

	"github.com/getflowy/collabsync/internal/model"
)

// CollabParams is the payload of an upsert to the storage collaborator.
type CollabParams struct {
	ObjectID        string
	EncodedCollabV1 []byte
	CollabType      model.CollabType
	Embeddings      []byte
}

// EncodedCollab is a snapshot returned by the storage collaborator: a
// doc-state encoding plus its corresponding state vector.
type EncodedCollab struct {
	DocStateV1    []byte
	StateVectorV1 []byte
}

// Storage is the persistence collaborator. The core owns no durable state
// of its own; every collab write and read goes through here.
type Storage interface {
	InsertOrUpdateCollab(ctx context.Context, workspaceID, uid string, params CollabParams, flushToDisk bool) error
	GetLatestEncoded(ctx context.Context, uid, workspaceID, objectID string, ct model.CollabType) (EncodedCollab, error)
}

// GroupHandle is a live collaboration group for one object, as returned by
// GroupManager.GetGroup.
type GroupHandle interface {
	// Subscribe joins the group under the given origin, returning channels
	// the caller uses to publish and receive messages.
	Subscribe(origin model.CollabOrigin) (outTx chan<- model.OutboundMessage, inRx <-chan model.InboundMessage, err error)
	// Broadcast fans out an encoded update to every subscriber of the group.
	Broadcast(ctx context.Context, update []byte) error
}

// GroupManager resolves live collaboration groups by object id.
type GroupManager interface {
	GetGroup(objectID string) (GroupHandle, bool)
}

// PublishSource is the published-data collaborator read by the
// Publish Duplicator.
type PublishSource interface {
	// SelectPublishedDataForViewID returns the metadata and raw blob
	// published for viewID, or ok=false if nothing is published there.
	SelectPublishedDataForViewID(ctx context.Context, viewID string) (metadataJSON []byte, raw []byte, ok bool, err error)
}
