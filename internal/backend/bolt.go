package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	bolt "go.etcd.io/bbolt"

	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// Bucket names inside the bolt.db file.
var (
	documentsBucket = []byte("documents")
	wordsBucket     = []byte("words")
)

// Bolt is the page-mapped backend: a single memory-mapped B+tree file with
// one bucket per concern. A whole write batch runs inside one write
// transaction, so readers see either the pre-batch or the post-batch state
// and a crash can never leak half a batch. Read operations open a view
// transaction scoped to the call.
type Bolt struct {
	db *bolt.DB
}

var _ services.Index = (*Bolt)(nil)

// OpenBolt opens (or creates) the database file at path and makes sure the
// two buckets exist.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(documentsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(wordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets in %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) addDocument(tx *bolt.Tx, docid model.DocID, doc model.Document, dirty map[string]*roaring.Bitmap) error {
	// An existing version of the document must release its postings first.
	if err := b.deleteDocument(tx, docid, dirty); err != nil {
		return err
	}

	for _, term := range documentTerms(doc) {
		bitmap, err := dirtyBoltBitmap(tx, dirty, term)
		if err != nil {
			return err
		}
		bitmap.Add(docid)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize document %d: %w", docid, err)
	}
	return tx.Bucket(documentsBucket).Put(docKey(docid), raw)
}

func (b *Bolt) deleteDocument(tx *bolt.Tx, docid model.DocID, dirty map[string]*roaring.Bitmap) error {
	documents := tx.Bucket(documentsBucket)
	raw := documents.Get(docKey(docid))
	if raw == nil {
		return nil
	}

	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("corrupted document %d: %w", docid, err)
	}

	// The stored body tells us which posting lists mention the docid.
	for _, term := range documentTerms(doc) {
		bitmap, err := dirtyBoltBitmap(tx, dirty, term)
		if err != nil {
			return err
		}
		bitmap.Remove(docid)
	}
	return documents.Delete(docKey(docid))
}

// dirtyBoltBitmap returns the staged bitmap for term, reading its current
// value through the surrounding write transaction on first touch.
func dirtyBoltBitmap(tx *bolt.Tx, dirty map[string]*roaring.Bitmap, term string) (*roaring.Bitmap, error) {
	if bitmap, ok := dirty[term]; ok {
		return bitmap, nil
	}

	bitmap := roaring.NewBitmap()
	if raw := tx.Bucket(wordsBucket).Get([]byte(term)); raw != nil {
		if _, err := bitmap.ReadFrom(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("corrupted bitmap for term %q: %w", term, err)
		}
	}
	dirty[term] = bitmap
	return bitmap, nil
}

// applyDirtyWords writes every staged bitmap once, inside the batch's
// write transaction.
func applyDirtyWords(tx *bolt.Tx, dirty map[string]*roaring.Bitmap) error {
	words := tx.Bucket(wordsBucket)
	for term, bitmap := range dirty {
		raw, err := bitmap.ToBytes()
		if err != nil {
			return fmt.Errorf("failed to serialize bitmap for term %q: %w", term, err)
		}
		if err := words.Put([]byte(term), raw); err != nil {
			return fmt.Errorf("failed to write bitmap for term %q: %w", term, err)
		}
	}
	return nil
}

// GetDocuments implements services.Index.
func (b *Bolt) GetDocuments() ([]model.Document, error) {
	docs := make([]model.Document, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(_, raw []byte) error {
			var doc model.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// GetDocument implements services.Index.
func (b *Bolt) GetDocument(id model.DocID) (*model.Document, error) {
	var doc *model.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(documentsBucket).Get(docKey(id))
		if raw == nil {
			return nil
		}
		var decoded model.Document
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		doc = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read document %d: %w", id, err)
	}
	return doc, nil
}

// AddDocuments implements services.Index. The whole batch, dirty-words
// flush included, commits as one transaction.
func (b *Bolt) AddDocuments(docs []model.Document) error {
	ids, err := batchDocIDs(docs)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		dirty := make(map[string]*roaring.Bitmap)
		for i, doc := range docs {
			if err := b.addDocument(tx, ids[i], doc, dirty); err != nil {
				return err
			}
		}
		return applyDirtyWords(tx, dirty)
	})
}

// DeleteDocuments implements services.Index.
func (b *Bolt) DeleteDocuments(ids []model.DocID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		dirty := make(map[string]*roaring.Bitmap)
		for _, id := range ids {
			if err := b.deleteDocument(tx, id, dirty); err != nil {
				return err
			}
		}
		return applyDirtyWords(tx, dirty)
	})
}

// Search implements services.Index.
func (b *Bolt) Search(query services.Query) ([]model.DocID, error) {
	acc := roaring.NewBitmap()
	err := b.db.View(func(tx *bolt.Tx) error {
		words := tx.Bucket(wordsBucket)
		for _, term := range queryTerms(query.Q) {
			raw := words.Get([]byte(term))
			if raw == nil {
				continue
			}
			bitmap := roaring.NewBitmap()
			if _, err := bitmap.ReadFrom(bytes.NewReader(raw)); err != nil {
				return fmt.Errorf("corrupted bitmap for term %q: %w", term, err)
			}
			acc.Or(bitmap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return acc.ToArray(), nil
}

// Clear implements services.Index.
func (b *Bolt) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{documentsBucket, wordsBucket} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements services.Index.
func (b *Bolt) Close() error {
	return b.db.Close()
}
