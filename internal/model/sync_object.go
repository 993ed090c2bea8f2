// Package model defines the wire and domain types shared across the
// synchronization core: the identity of a replica, the origin attached to
// mutations, and the inbound/outbound message variants exchanged with the
// server.
package model

import "fmt"

// CollabType identifies the shape of a collab object's payload.
type CollabType int

const (
	CollabTypeDocument CollabType = iota
	CollabTypeDatabase
	CollabTypeDatabaseRow
	CollabTypeWorkspaceDatabase
	CollabTypeFolder
	CollabTypeUserAwareness
)

func (t CollabType) String() string {
	switch t {
	case CollabTypeDocument:
		return "Document"
	case CollabTypeDatabase:
		return "Database"
	case CollabTypeDatabaseRow:
		return "DatabaseRow"
	case CollabTypeWorkspaceDatabase:
		return "WorkspaceDatabase"
	case CollabTypeFolder:
		return "Folder"
	case CollabTypeUserAwareness:
		return "UserAwareness"
	default:
		return fmt.Sprintf("CollabType(%d)", int(t))
	}
}

// SyncObject identifies one replica. It's immutable for the lifetime of an
// observer.
type SyncObject struct {
	ObjectID    string
	WorkspaceID string
	CollabType  CollabType
}

func (o SyncObject) String() string {
	return fmt.Sprintf("%s/%s[%s]", o.WorkspaceID, o.ObjectID, o.CollabType)
}

// OriginKind discriminates the source of a CollabOrigin.
type OriginKind int

const (
	OriginServer OriginKind = iota
	OriginEmpty
	OriginClient
)

// CollabOrigin is the identity attached to mutations, used for loopback
// suppression and acknowledgement routing. It's a comparable struct rather
// than an interface so it can be used as a map key and logged cheaply.
type CollabOrigin struct {
	Kind    OriginKind
	UID     string
	Device  string
	Session string
}

// ServerOrigin is the well-known origin attached to server-authored mutations.
var ServerOrigin = CollabOrigin{Kind: OriginServer}

// EmptyOrigin is the well-known origin used when no identity applies.
var EmptyOrigin = CollabOrigin{Kind: OriginEmpty}

// ClientOrigin builds a client-identified CollabOrigin.
func ClientOrigin(uid, device, session string) CollabOrigin {
	return CollabOrigin{Kind: OriginClient, UID: uid, Device: device, Session: session}
}

func (o CollabOrigin) String() string {
	switch o.Kind {
	case OriginServer:
		return "Server"
	case OriginEmpty:
		return "Empty"
	case OriginClient:
		return fmt.Sprintf("Client{uid:%s, device:%s, session:%s}", o.UID, o.Device, o.Session)
	default:
		return "Unknown"
	}
}
