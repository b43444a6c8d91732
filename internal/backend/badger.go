package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// Sub-store names under the badger.db directory.
const (
	badgerDocStore  = "doc_mapping"
	badgerWordStore = "words"
)

// Badger is the log-structured backend: two embedded stores, one mapping
// docid keys to JSON document bodies and one mapping terms to serialized
// roaring bitmaps. Bitmaps are decoded on every read, so the write path
// stages modified terms in a dirty-words map and writes each touched term
// once per batch instead of once per document.
//
// Documents are committed as they are processed and the word batch is
// flushed afterwards; a crash between the two can leak stale postings.
// That is this backend's accepted durability trade-off.
type Badger struct {
	documents *badger.DB
	words     *badger.DB
}

var _ services.Index = (*Badger)(nil)

// OpenBadger opens (or creates) the two sub-stores under path.
func OpenBadger(path string) (*Badger, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", path, err)
	}

	documents, err := badger.Open(badger.DefaultOptions(filepath.Join(path, badgerDocStore)).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	words, err := badger.Open(badger.DefaultOptions(filepath.Join(path, badgerWordStore)).WithLogger(nil))
	if err != nil {
		documents.Close()
		return nil, fmt.Errorf("failed to open word store: %w", err)
	}
	return &Badger{documents: documents, words: words}, nil
}

func (b *Badger) addDocument(txn *badger.Txn, docid model.DocID, doc model.Document, dirty map[string]*roaring.Bitmap) error {
	// An existing version of the document must release its postings first.
	if err := b.deleteDocument(txn, docid, dirty); err != nil {
		return err
	}

	for _, term := range documentTerms(doc) {
		bitmap, err := b.dirtyBitmap(dirty, term)
		if err != nil {
			return err
		}
		bitmap.Add(docid)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize document %d: %w", docid, err)
	}
	return txn.Set(docKey(docid), raw)
}

func (b *Badger) deleteDocument(txn *badger.Txn, docid model.DocID, dirty map[string]*roaring.Bitmap) error {
	item, err := txn.Get(docKey(docid))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read document %d: %w", docid, err)
	}

	raw, err := item.ValueCopy(nil)
	if err != nil {
		return fmt.Errorf("failed to read document %d: %w", docid, err)
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("corrupted document %d: %w", docid, err)
	}

	// The stored body tells us which posting lists mention the docid.
	for _, term := range documentTerms(doc) {
		bitmap, err := b.dirtyBitmap(dirty, term)
		if err != nil {
			return err
		}
		bitmap.Remove(docid)
	}
	return txn.Delete(docKey(docid))
}

// dirtyBitmap returns the staged bitmap for term, loading its current
// on-disk value on first touch within the batch.
func (b *Badger) dirtyBitmap(dirty map[string]*roaring.Bitmap, term string) (*roaring.Bitmap, error) {
	if bitmap, ok := dirty[term]; ok {
		return bitmap, nil
	}

	bitmap := roaring.NewBitmap()
	err := b.words.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(term))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			_, err := bitmap.ReadFrom(bytes.NewReader(raw))
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bitmap for term %q: %w", term, err)
	}
	dirty[term] = bitmap
	return bitmap, nil
}

// applyDirtyWords writes every staged bitmap once and flushes both stores.
func (b *Badger) applyDirtyWords(dirty map[string]*roaring.Bitmap) error {
	batch := b.words.NewWriteBatch()
	defer batch.Cancel()

	for term, bitmap := range dirty {
		raw, err := bitmap.ToBytes()
		if err != nil {
			return fmt.Errorf("failed to serialize bitmap for term %q: %w", term, err)
		}
		if err := batch.Set([]byte(term), raw); err != nil {
			return fmt.Errorf("failed to write bitmap for term %q: %w", term, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("failed to flush word store: %w", err)
	}

	if err := b.words.Sync(); err != nil {
		return fmt.Errorf("failed to sync word store: %w", err)
	}
	if err := b.documents.Sync(); err != nil {
		return fmt.Errorf("failed to sync document store: %w", err)
	}
	return nil
}

// GetDocuments implements services.Index.
func (b *Badger) GetDocuments() ([]model.Document, error) {
	docs := make([]model.Document, 0)
	err := b.documents.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(raw []byte) error {
				var doc model.Document
				if err := json.Unmarshal(raw, &doc); err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// GetDocument implements services.Index.
func (b *Badger) GetDocument(id model.DocID) (*model.Document, error) {
	var doc *model.Document
	err := b.documents.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			var decoded model.Document
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return err
			}
			doc = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read document %d: %w", id, err)
	}
	return doc, nil
}

// AddDocuments implements services.Index.
func (b *Badger) AddDocuments(docs []model.Document) error {
	ids, err := batchDocIDs(docs)
	if err != nil {
		return err
	}

	dirty := make(map[string]*roaring.Bitmap)
	for i, doc := range docs {
		docid, doc := ids[i], doc
		err := b.documents.Update(func(txn *badger.Txn) error {
			return b.addDocument(txn, docid, doc, dirty)
		})
		if err != nil {
			return err
		}
	}
	return b.applyDirtyWords(dirty)
}

// DeleteDocuments implements services.Index.
func (b *Badger) DeleteDocuments(ids []model.DocID) error {
	dirty := make(map[string]*roaring.Bitmap)
	for _, id := range ids {
		docid := id
		err := b.documents.Update(func(txn *badger.Txn) error {
			return b.deleteDocument(txn, docid, dirty)
		})
		if err != nil {
			return err
		}
	}
	return b.applyDirtyWords(dirty)
}

// Search implements services.Index, decoding each term's bitmap from its
// stored bytes and folding the union into an accumulator.
func (b *Badger) Search(query services.Query) ([]model.DocID, error) {
	acc := roaring.NewBitmap()
	err := b.words.View(func(txn *badger.Txn) error {
		for _, term := range queryTerms(query.Q) {
			item, err := txn.Get([]byte(term))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(raw []byte) error {
				bitmap := roaring.NewBitmap()
				if _, err := bitmap.ReadFrom(bytes.NewReader(raw)); err != nil {
					return err
				}
				acc.Or(bitmap)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return acc.ToArray(), nil
}

// Clear implements services.Index.
func (b *Badger) Clear() error {
	if err := b.documents.DropAll(); err != nil {
		return fmt.Errorf("failed to clear document store: %w", err)
	}
	if err := b.words.DropAll(); err != nil {
		return fmt.Errorf("failed to clear word store: %w", err)
	}
	return nil
}

// Close implements services.Index.
func (b *Badger) Close() error {
	docErr := b.documents.Close()
	wordErr := b.words.Close()
	if docErr != nil {
		return docErr
	}
	return wordErr
}
