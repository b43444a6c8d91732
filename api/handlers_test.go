package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irevoire/minisearch/config"
	"github.com/irevoire/minisearch/internal/backend"
	"github.com/irevoire/minisearch/model"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	index, err := backend.Open(config.BackendNaive, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, index.Close())
	})

	router := gin.New()
	SetupRoutes(router, index)
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRootHelp(t *testing.T) {
	router := newTestRouter(t)
	resp := do(router, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Call `/documents` or `/search`", resp.Body.String())
}

func TestAddAndGetDocument(t *testing.T) {
	router := newTestRouter(t)

	resp := do(router, http.MethodPost, "/documents", `{"id":1,"title":"Hello"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var ack map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &ack))
	assert.Contains(t, ack, "elapsed")

	resp = do(router, http.MethodGet, "/documents/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"id":1,"title":"Hello"}`, resp.Body.String())
}

func TestAddDocumentsArray(t *testing.T) {
	router := newTestRouter(t)

	resp := do(router, http.MethodPost, "/documents",
		`[{"id":1,"title":"one"},{"id":2,"title":"two"}]`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(router, http.MethodGet, "/documents", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var docs []model.Document
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &docs))
	assert.Len(t, docs, 2)
}

func TestGetUnknownDocumentReturnsNull(t *testing.T) {
	router := newTestRouter(t)
	resp := do(router, http.MethodGet, "/documents/99", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "null", resp.Body.String())
}

func TestGetDocumentInvalidID(t *testing.T) {
	router := newTestRouter(t)
	for _, docid := range []string{"abc", "-1", "1.5", "4294967296"} {
		resp := do(router, http.MethodGet, "/documents/"+docid, "")
		assert.Equal(t, http.StatusBadRequest, resp.Code, "docid %q", docid)
	}
}

func TestAddMalformedJSON(t *testing.T) {
	router := newTestRouter(t)
	for _, body := range []string{`{"id":`, `not json`, ``, `42`} {
		resp := do(router, http.MethodPost, "/documents", body)
		assert.Equal(t, http.StatusBadRequest, resp.Code, "body %q", body)
	}
}

func TestAddDocumentWithoutIDIsRejected(t *testing.T) {
	router := newTestRouter(t)

	resp := do(router, http.MethodPost, "/documents", `{"title":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// The whole batch must have been discarded.
	resp = do(router, http.MethodGet, "/documents", "")
	assert.Equal(t, "[]", resp.Body.String())
}

func TestDeleteDocuments(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/documents",
		`[{"id":1,"title":"one"},{"id":2,"title":"two"},{"id":3,"title":"three"}]`)

	// One-or-many: a single docid...
	resp := do(router, http.MethodDelete, "/documents", `1`)
	require.Equal(t, http.StatusOK, resp.Code)

	// ...or an array of docids.
	resp = do(router, http.MethodDelete, "/documents", `[2, 42]`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(router, http.MethodGet, "/documents", "")
	var docs []model.Document
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &docs))
	require.Len(t, docs, 1)

	id, err := docs[0].DocID()
	require.NoError(t, err)
	assert.Equal(t, model.DocID(3), id)
}

func TestSearch(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/documents",
		`[{"id":1,"title":"Hello"},{"id":2,"title":"hello world"}]`)

	resp := do(router, http.MethodGet, "/search?q=hello", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		Elapsed string           `json:"elapsed"`
		NbHits  int              `json:"nb_hits"`
		Results []model.Document `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))

	assert.NotEmpty(t, result.Elapsed)
	assert.Equal(t, 2, result.NbHits)
	assert.Len(t, result.Results, 2)
}

func TestSearchEmptyQuery(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/documents", `{"id":1,"title":"Hello"}`)

	for _, path := range []string{"/search?q=", "/search"} {
		resp := do(router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, resp.Code, "path %s", path)

		var result struct {
			NbHits  int              `json:"nb_hits"`
			Results []model.Document `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		assert.Zero(t, result.NbHits)
		assert.Empty(t, result.Results)
	}
}

func TestSearchTruncatesResultPreview(t *testing.T) {
	router := newTestRouter(t)

	var docs []string
	for i := 1; i <= 10; i++ {
		docs = append(docs, fmt.Sprintf(`{"id":%d,"title":"common term"}`, i))
	}
	do(router, http.MethodPost, "/documents", "["+strings.Join(docs, ",")+"]")

	resp := do(router, http.MethodGet, "/search?q=common", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		NbHits  int              `json:"nb_hits"`
		Results []model.Document `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))

	// nb_hits reports the full count, results only a preview.
	assert.Equal(t, 10, result.NbHits)
	assert.Len(t, result.Results, 3)
}

func TestUpsertThroughAPI(t *testing.T) {
	router := newTestRouter(t)

	do(router, http.MethodPost, "/documents", `{"id":5,"note":"red"}`)
	do(router, http.MethodPost, "/documents", `{"id":5,"note":"blue"}`)

	var result struct {
		NbHits int `json:"nb_hits"`
	}
	resp := do(router, http.MethodGet, "/search?q=red", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Zero(t, result.NbHits)

	resp = do(router, http.MethodGet, "/search?q=blue", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, 1, result.NbHits)
}
