package backend

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/irevoire/minisearch/internal/persistence"
	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// Naive is the correctness-baseline backend: the whole index lives in
// memory and is rewritten to a single JSON snapshot after every write
// batch. Posting lists are plain docid slices, so multi-term searches must
// deduplicate their union before returning.
type Naive struct {
	path      string
	documents map[model.DocID]model.Document
	words     map[string][]model.DocID
}

var _ services.Index = (*Naive)(nil)

// naiveSnapshot is the on-disk shape: {"documents": {...}, "words": {...}}.
type naiveSnapshot struct {
	Documents map[model.DocID]model.Document `json:"documents"`
	Words     map[string][]model.DocID       `json:"words"`
}

// OpenNaive loads the snapshot at path, or starts empty when none exists.
// A snapshot that exists but cannot be decoded is a fatal startup error.
func OpenNaive(path string) (*Naive, error) {
	naive := &Naive{
		path:      path,
		documents: make(map[model.DocID]model.Document),
		words:     make(map[string][]model.DocID),
	}

	var snapshot naiveSnapshot
	err := persistence.LoadJSON(path, &snapshot)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return naive, nil
	case err != nil:
		return nil, fmt.Errorf("corrupted database %s: %w", path, err)
	}

	if snapshot.Documents != nil {
		naive.documents = snapshot.Documents
	}
	if snapshot.Words != nil {
		naive.words = snapshot.Words
	}
	// Rewrite the file on startup so a partially written snapshot from an
	// older version is normalized immediately.
	if err := naive.persist(); err != nil {
		return nil, err
	}
	return naive, nil
}

func (n *Naive) persist() error {
	snapshot := naiveSnapshot{Documents: n.documents, Words: n.words}
	if err := persistence.SaveJSON(n.path, snapshot); err != nil {
		return fmt.Errorf("failed to persist naive index: %w", err)
	}
	return nil
}

func (n *Naive) addDocument(docid model.DocID, doc model.Document) {
	// An existing version of the document must release its postings first.
	n.deleteDocument(docid)

	for _, term := range documentTerms(doc) {
		n.words[term] = append(n.words[term], docid)
	}
	n.documents[docid] = doc
}

func (n *Naive) deleteDocument(docid model.DocID) {
	doc, ok := n.documents[docid]
	if !ok {
		return
	}
	delete(n.documents, docid)

	// The stored body tells us which posting lists mention the docid.
	for _, term := range documentTerms(doc) {
		ids := n.words[term]
		kept := ids[:0]
		for _, id := range ids {
			if id != docid {
				kept = append(kept, id)
			}
		}
		n.words[term] = kept
	}
}

// GetDocuments implements services.Index.
func (n *Naive) GetDocuments() ([]model.Document, error) {
	docs := make([]model.Document, 0, len(n.documents))
	for _, doc := range n.documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetDocument implements services.Index.
func (n *Naive) GetDocument(id model.DocID) (*model.Document, error) {
	doc, ok := n.documents[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// AddDocuments implements services.Index. The batch is a single unit: all
// docids are validated before the first mutation, and the snapshot is
// written once at the end.
func (n *Naive) AddDocuments(docs []model.Document) error {
	ids, err := batchDocIDs(docs)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		n.addDocument(ids[i], doc)
	}
	return n.persist()
}

// DeleteDocuments implements services.Index. Unknown docids are no-ops.
func (n *Naive) DeleteDocuments(ids []model.DocID) error {
	for _, id := range ids {
		n.deleteDocument(id)
	}
	return n.persist()
}

// Search implements services.Index. Posting lists are concatenated and then
// sort-deduplicated, since a docid can appear under several query terms.
func (n *Naive) Search(query services.Query) ([]model.DocID, error) {
	var docids []model.DocID
	for _, term := range queryTerms(query.Q) {
		docids = append(docids, n.words[term]...)
	}

	sort.Slice(docids, func(i, j int) bool { return docids[i] < docids[j] })
	deduped := docids[:0]
	for i, id := range docids {
		if i > 0 && id == docids[i-1] {
			continue
		}
		deduped = append(deduped, id)
	}
	return deduped, nil
}

// Clear implements services.Index.
func (n *Naive) Clear() error {
	n.documents = make(map[model.DocID]model.Document)
	n.words = make(map[string][]model.DocID)
	return n.persist()
}

// Close implements services.Index. Every batch already persisted itself.
func (n *Naive) Close() error {
	return nil
}
