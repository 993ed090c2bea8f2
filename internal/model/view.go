package model

import (
	"fmt"
	"time"
)

// ViewLayout discriminates a View's presentation, relevant to the Publish
// Duplicator's choice of child layout when copying a document or database.
type ViewLayout int

const (
	ViewLayoutDocument ViewLayout = iota
	ViewLayoutGrid
)

func (l ViewLayout) String() string {
	switch l {
	case ViewLayoutDocument:
		return "Document"
	case ViewLayoutGrid:
		return "Grid"
	default:
		return fmt.Sprintf("ViewLayout(%d)", int(l))
	}
}

// View is a node in the folder tree produced by the Publish Duplicator.
// ParentViewID is left empty by deep_copy itself; the caller assigns it (the
// top-level caller sets it to the destination parent view).
type View struct {
	ID           string
	ParentViewID string
	Name         string
	Icon         string
	Extra        string
	Layout       ViewLayout
	CreatedAt    time.Time
	CreatedBy    string
	Children     []string
}
