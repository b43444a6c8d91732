package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irevoire/minisearch/internal/persistence"
	"github.com/irevoire/minisearch/model"
)

func openNaive(t *testing.T, dir string) *Naive {
	t.Helper()
	naive, err := OpenNaive(filepath.Join(dir, naiveDBName))
	require.NoError(t, err)
	return naive
}

// A term repeated within one document must land in its posting list once.
func TestNaiveTermDedup(t *testing.T) {
	naive := openNaive(t, t.TempDir())
	require.NoError(t, naive.AddDocuments(mustDocs(t, `{"id":1,"title":"lol lol lol"}`)))

	assert.Equal(t, []model.DocID{1}, naive.words["lol"])
}

func TestNaiveSnapshotShape(t *testing.T) {
	dir := t.TempDir()
	naive := openNaive(t, dir)
	require.NoError(t, naive.AddDocuments(mustDocs(t, `{"id":1,"title":"hello"}`)))

	var snapshot struct {
		Documents map[string]model.Document `json:"documents"`
		Words     map[string][]model.DocID  `json:"words"`
	}
	require.NoError(t, persistence.LoadJSON(filepath.Join(dir, naiveDBName), &snapshot))

	assert.Contains(t, snapshot.Documents, "1")
	assert.Equal(t, []model.DocID{1}, snapshot.Words["hello"])
}

func TestNaiveCorruptedSnapshotFailsOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, naiveDBName), []byte("not json"), 0600))

	_, err := OpenNaive(filepath.Join(dir, naiveDBName))
	require.Error(t, err)
}

// Deleting a document leaves its docid in no posting list at all.
func TestNaiveDeleteScrubsPostings(t *testing.T) {
	naive := openNaive(t, t.TempDir())
	require.NoError(t, naive.AddDocuments(mustDocs(t,
		`{"id":1,"title":"shared term"}`,
		`{"id":2,"title":"shared other"}`,
	)))
	require.NoError(t, naive.DeleteDocuments([]model.DocID{1}))

	for term, ids := range naive.words {
		assert.NotContains(t, ids, model.DocID(1), "term %q still references deleted docid", term)
	}
}
