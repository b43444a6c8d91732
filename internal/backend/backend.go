// Package backend provides the interchangeable storage backends of the
// search engine. All five implement services.Index with identical observable
// semantics; they differ in how documents and posting lists hit the disk.
package backend

import (
	"encoding/binary"
	"path/filepath"
	"sort"

	"github.com/irevoire/minisearch/config"
	internalErrors "github.com/irevoire/minisearch/internal/errors"
	"github.com/irevoire/minisearch/internal/tokenizer"
	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// On-disk names, rooted under the data directory.
const (
	naiveDBName   = "naive.db"
	roaringDBName = "roaring.db"
	badgerDBName  = "badger.db"
	boltDBName    = "bolt.db"
	sqliteDBName  = "sqlite.db"
)

// Open constructs the backend selected by backendType, storing its state
// under dataDir. The returned index owns its on-disk resources until Close.
func Open(backendType config.BackendType, dataDir string) (services.Index, error) {
	switch backendType {
	case config.BackendNaive:
		return OpenNaive(filepath.Join(dataDir, naiveDBName))
	case config.BackendRoaring:
		return OpenRoaring(filepath.Join(dataDir, roaringDBName))
	case config.BackendBadger:
		return OpenBadger(filepath.Join(dataDir, badgerDBName))
	case config.BackendBolt:
		return OpenBolt(filepath.Join(dataDir, boltDBName))
	case config.BackendSQLite:
		return OpenSQLite(filepath.Join(dataDir, sqliteDBName))
	default:
		return nil, internalErrors.NewUnknownBackendError(string(backendType))
	}
}

// documentTerms tokenizes every string field of doc and returns the sorted,
// deduplicated set of its non-empty terms. A term repeated within one
// document therefore inserts the docid into its posting exactly once, and
// empty tokens never become postings.
func documentTerms(doc model.Document) []string {
	var terms []string
	for _, field := range doc.StringFields() {
		terms = append(terms, tokenizer.Tokenize(field)...)
	}
	sort.Strings(terms)

	deduped := terms[:0]
	previous := ""
	for _, term := range terms {
		if term == "" || term == previous {
			continue
		}
		deduped = append(deduped, term)
		previous = term
	}
	return deduped
}

// docKey encodes a docid as a fixed-width 4-byte key for the KV backends.
// Little-endian, always: the files stay portable across architectures.
func docKey(id model.DocID) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, id)
	return key
}

// queryTerms tokenizes a raw query string. Empty tokens are dropped here
// rather than looked up: no posting is ever stored under the empty term.
func queryTerms(q string) []string {
	tokens := tokenizer.Tokenize(q)
	terms := tokens[:0]
	for _, token := range tokens {
		if token != "" {
			terms = append(terms, token)
		}
	}
	return terms
}

// batchDocIDs extracts the docid of every document up front, so a document
// with a missing or malformed id aborts the batch before any mutation.
func batchDocIDs(docs []model.Document) ([]model.DocID, error) {
	ids := make([]model.DocID, len(docs))
	for i, doc := range docs {
		id, err := doc.DocID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
