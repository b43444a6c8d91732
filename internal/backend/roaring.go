package backend

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring"

	"github.com/irevoire/minisearch/internal/persistence"
	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// Roaring keeps the same single-file JSON persistence as Naive but stores
// posting lists as compressed roaring bitmaps, so per-document term
// deduplication and multi-term unions come for free from set semantics.
type Roaring struct {
	path      string
	documents map[model.DocID]model.Document
	words     map[string]*roaring.Bitmap
}

var _ services.Index = (*Roaring)(nil)

// roaringSnapshot carries bitmaps as their portable serialized bytes;
// encoding/json base64-encodes them inside the snapshot object.
type roaringSnapshot struct {
	Documents map[model.DocID]model.Document `json:"documents"`
	Words     map[string][]byte              `json:"words"`
}

// OpenRoaring loads the snapshot at path, or starts empty when none exists.
func OpenRoaring(path string) (*Roaring, error) {
	index := &Roaring{
		path:      path,
		documents: make(map[model.DocID]model.Document),
		words:     make(map[string]*roaring.Bitmap),
	}

	var snapshot roaringSnapshot
	err := persistence.LoadJSON(path, &snapshot)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return index, nil
	case err != nil:
		return nil, fmt.Errorf("corrupted database %s: %w", path, err)
	}

	if snapshot.Documents != nil {
		index.documents = snapshot.Documents
	}
	for term, raw := range snapshot.Words {
		bitmap := roaring.NewBitmap()
		if _, err := bitmap.ReadFrom(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("corrupted bitmap for term %q in %s: %w", term, path, err)
		}
		index.words[term] = bitmap
	}
	if err := index.persist(); err != nil {
		return nil, err
	}
	return index, nil
}

func (r *Roaring) persist() error {
	snapshot := roaringSnapshot{
		Documents: r.documents,
		Words:     make(map[string][]byte, len(r.words)),
	}
	for term, bitmap := range r.words {
		raw, err := bitmap.ToBytes()
		if err != nil {
			return fmt.Errorf("failed to serialize bitmap for term %q: %w", term, err)
		}
		snapshot.Words[term] = raw
	}
	if err := persistence.SaveJSON(r.path, snapshot); err != nil {
		return fmt.Errorf("failed to persist roaring index: %w", err)
	}
	return nil
}

func (r *Roaring) addDocument(docid model.DocID, doc model.Document) {
	r.deleteDocument(docid)

	for _, term := range documentTerms(doc) {
		bitmap, ok := r.words[term]
		if !ok {
			bitmap = roaring.NewBitmap()
			r.words[term] = bitmap
		}
		bitmap.Add(docid)
	}
	r.documents[docid] = doc
}

func (r *Roaring) deleteDocument(docid model.DocID) {
	doc, ok := r.documents[docid]
	if !ok {
		return
	}
	delete(r.documents, docid)

	for _, term := range documentTerms(doc) {
		if bitmap, ok := r.words[term]; ok {
			bitmap.Remove(docid)
		}
	}
}

// GetDocuments implements services.Index.
func (r *Roaring) GetDocuments() ([]model.Document, error) {
	docs := make([]model.Document, 0, len(r.documents))
	for _, doc := range r.documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetDocument implements services.Index.
func (r *Roaring) GetDocument(id model.DocID) (*model.Document, error) {
	doc, ok := r.documents[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// AddDocuments implements services.Index.
func (r *Roaring) AddDocuments(docs []model.Document) error {
	ids, err := batchDocIDs(docs)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		r.addDocument(ids[i], doc)
	}
	return r.persist()
}

// DeleteDocuments implements services.Index.
func (r *Roaring) DeleteDocuments(ids []model.DocID) error {
	for _, id := range ids {
		r.deleteDocument(id)
	}
	return r.persist()
}

// Search implements services.Index: one OR over the terms' bitmaps.
func (r *Roaring) Search(query services.Query) ([]model.DocID, error) {
	bitmaps := make([]*roaring.Bitmap, 0)
	for _, term := range queryTerms(query.Q) {
		if bitmap, ok := r.words[term]; ok {
			bitmaps = append(bitmaps, bitmap)
		}
	}
	if len(bitmaps) == 0 {
		return []model.DocID{}, nil
	}
	return roaring.FastOr(bitmaps...).ToArray(), nil
}

// Clear implements services.Index.
func (r *Roaring) Clear() error {
	r.documents = make(map[model.DocID]model.Document)
	r.words = make(map[string]*roaring.Bitmap)
	return r.persist()
}

// Close implements services.Index.
func (r *Roaring) Close() error {
	return nil
}
