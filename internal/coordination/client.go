// Package coordination abstracts the strongly-consistent service holding
// the shared policy document. Backends expose a versioned read and a
// compare-and-swap write; all concurrency control between nodes funnels
// through the revision returned here.
package coordination

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Revision is the opaque version accompanying every read of the document.
// It is produced by the backend and must be passed back, unmodified, on
// write.
type Revision string

// NoRevision is the revision of a document that does not exist yet.
const NoRevision Revision = ""

var (
	// ErrRevisionConflict is returned by Write when the document changed
	// since the revision was read.
	ErrRevisionConflict = errors.New("document revision conflict")

	// ErrNotFound is returned by Read when the document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Client is a versioned document store with compare-and-swap writes.
type Client interface {
	// Read returns the current document and its revision.
	Read(ctx context.Context) ([]byte, Revision, error)

	// Write replaces the document, succeeding only if the stored revision
	// still equals expected. Writing with NoRevision creates the document
	// and fails with ErrRevisionConflict if it already exists.
	Write(ctx context.Context, data []byte, expected Revision) error
}
