// Package config defines the runtime configuration of the search engine,
// which for this project boils down to picking a storage backend.
package config

import (
	internalErrors "github.com/irevoire/minisearch/internal/errors"
)

// BackendType names one of the interchangeable index storage backends.
type BackendType string

const (
	// BackendNaive is the in-memory map persisted as a single JSON snapshot.
	BackendNaive BackendType = "naive"
	// BackendRoaring is the in-memory roaring-bitmap index, JSON-persisted.
	BackendRoaring BackendType = "roaring"
	// BackendBadger is the log-structured embedded KV backend.
	BackendBadger BackendType = "badger"
	// BackendBolt is the page-mapped transactional KV backend.
	BackendBolt BackendType = "bolt"
	// BackendSQLite stores documents and postings in a SQLite file.
	BackendSQLite BackendType = "sqlite"
)

// DefaultBackend is used when no backend is named on the command line.
const DefaultBackend = BackendBolt

// BackendTypes lists every valid backend, in the order shown by usage text.
func BackendTypes() []BackendType {
	return []BackendType{BackendNaive, BackendRoaring, BackendBadger, BackendBolt, BackendSQLite}
}

// ParseBackendType maps a command-line backend name to its BackendType.
// The empty string selects DefaultBackend; anything unrecognized is an error.
func ParseBackendType(name string) (BackendType, error) {
	if name == "" {
		return DefaultBackend, nil
	}
	for _, backend := range BackendTypes() {
		if name == string(backend) {
			return backend, nil
		}
	}
	return "", internalErrors.NewUnknownBackendError(name)
}
