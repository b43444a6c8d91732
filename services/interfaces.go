package services

import (
	"github.com/irevoire/minisearch/model"
)

// Query is a search request. Q is tokenized and the posting lists of the
// resulting terms are unioned: terms are combined with an implicit OR, and
// terms matching no document contribute nothing.
type Query struct {
	Q string `json:"q" form:"q"`
}

// Index is the contract every storage backend implements. All operations
// run synchronously; the HTTP layer serializes writers behind a single
// reader-writer lock, so implementations do not need internal locking.
type Index interface {
	// GetDocuments returns every stored document in unspecified order.
	GetDocuments() ([]model.Document, error)

	// GetDocument returns the document stored under id, or nil (with a nil
	// error) when the id is unknown.
	GetDocument(id model.DocID) (*model.Document, error)

	// AddDocuments upserts a batch of documents. A document whose docid
	// already exists is fully replaced: its old postings are removed before
	// the new body is indexed. The whole batch is committed once, at the end.
	AddDocuments(docs []model.Document) error

	// DeleteDocuments removes each document and all its postings. Unknown
	// docids are no-ops. Batched and committed like AddDocuments.
	DeleteDocuments(ids []model.DocID) error

	// Search returns the union of the posting lists of the query's terms,
	// duplicate-free, in unspecified order.
	Search(query Query) ([]model.DocID, error)

	// Clear drops every document and posting. The backend stays usable.
	Clear() error

	// Close releases the backend's on-disk resources.
	Close() error
}
