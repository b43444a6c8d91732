package backend

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	// Register the sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// SQLite stores documents as BLOBs and postings as one (doc_id, word) row
// per distinct term of a document. Deduplicated terms per document keep the posting
// table duplicate-free; search still goes through SELECT DISTINCT so the
// result is a set either way.
type SQLite struct {
	db *sql.DB
}

var _ services.Index = (*SQLite)(nil)

// OpenSQLite opens the database file at path, configures it for this
// workload and creates the schema if needed.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// WAL keeps readers unblocked during the (single) writer's batches;
	// NORMAL sync is safe under WAL and avoids an fsync per commit.
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA synchronous=NORMAL`,
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database %s: %w", path, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id INTEGER PRIMARY KEY,
			document BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_search (
			doc_id INTEGER NOT NULL,
			word TEXT NOT NULL,
			FOREIGN KEY(doc_id) REFERENCES documents(doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS document_search_word ON document_search(word)`,
		`CREATE INDEX IF NOT EXISTS document_search_doc_id ON document_search(doc_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema in %s: %w", path, err)
		}
	}
	return &SQLite{db: db}, nil
}

// GetDocuments implements services.Index.
func (s *SQLite) GetDocuments() ([]model.Document, error) {
	rows, err := s.db.Query(`SELECT document FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc model.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("corrupted document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// GetDocument implements services.Index.
func (s *SQLite) GetDocument(id model.DocID) (*model.Document, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT document FROM documents WHERE doc_id = ?`, int64(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %d: %w", id, err)
	}

	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupted document %d: %w", id, err)
	}
	return &doc, nil
}

// AddDocuments implements services.Index. The batch runs in one SQL
// transaction: per document the old search rows go away, the body is
// upserted and one row per deduplicated term is inserted.
func (s *SQLite) AddDocuments(docs []model.Document) error {
	ids, err := batchDocIDs(docs)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteSearch, err := tx.Prepare(`DELETE FROM document_search WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer deleteSearch.Close()

	upsertDoc, err := tx.Prepare(`
		INSERT INTO documents (doc_id, document) VALUES (?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET document = excluded.document`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer upsertDoc.Close()

	insertSearch, err := tx.Prepare(`INSERT INTO document_search (doc_id, word) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertSearch.Close()

	for i, doc := range docs {
		docid := int64(ids[i])

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to serialize document %d: %w", ids[i], err)
		}
		if _, err := deleteSearch.Exec(docid); err != nil {
			return fmt.Errorf("failed to delete postings of document %d: %w", ids[i], err)
		}
		if _, err := upsertDoc.Exec(docid, raw); err != nil {
			return fmt.Errorf("failed to write document %d: %w", ids[i], err)
		}
		for _, term := range documentTerms(doc) {
			if _, err := insertSearch.Exec(docid, term); err != nil {
				return fmt.Errorf("failed to write posting %q of document %d: %w", term, ids[i], err)
			}
		}
	}
	return tx.Commit()
}

// DeleteDocuments implements services.Index. The IN lists bind one
// parameter per docid.
func (s *SQLite) DeleteDocuments(ids []model.DocID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM document_search WHERE doc_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete postings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE doc_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return tx.Commit()
}

// Search implements services.Index, binding one parameter per term.
func (s *SQLite) Search(query services.Query) ([]model.DocID, error) {
	terms := queryTerms(query.Q)
	if len(terms) == 0 {
		return []model.DocID{}, nil
	}

	placeholders := strings.Repeat("?,", len(terms))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(terms))
	for i, term := range terms {
		args[i] = term
	}

	rows, err := s.db.Query(
		`SELECT DISTINCT doc_id FROM document_search WHERE word IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	docids := make([]model.DocID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		docids = append(docids, model.DocID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return docids, nil
}

// Clear implements services.Index.
func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM document_search`); err != nil {
		return fmt.Errorf("failed to clear postings: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	return nil
}

// Close implements services.Index.
func (s *SQLite) Close() error {
	return s.db.Close()
}
