package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/irevoire/minisearch/internal/errors"
	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// maxRequestBodySize bounds JSON bodies so one oversized ingest request
// cannot exhaust memory.
const maxRequestBodySize = 100 << 20 // 100 MB

// API holds the handlers' dependencies: the selected index behind a single
// reader-writer lock. Searches and document reads share the lock; any
// mutation takes it exclusively, so readers see either the pre-batch or the
// post-batch state, never a half-applied one.
type API struct {
	mu    sync.RWMutex
	index services.Index
}

// NewAPI creates a new API handler structure around the given index.
func NewAPI(index services.Index) *API {
	return &API{index: index}
}

// SetupRoutes defines the API routes of the search engine.
func SetupRoutes(router *gin.Engine, index services.Index) {
	apiHandler := NewAPI(index)

	router.Use(CORSMiddleware())
	router.Use(RequestSizeLimitMiddleware(maxRequestBodySize))

	router.GET("/", apiHandler.RootHandler)
	router.GET("/documents", apiHandler.GetDocumentsHandler)
	router.POST("/documents", apiHandler.AddDocumentsHandler)
	router.DELETE("/documents", apiHandler.DeleteDocumentsHandler)
	router.GET("/documents/:docid", apiHandler.GetDocumentHandler)
	router.GET("/search", apiHandler.SearchHandler)
}

// RootHandler serves a short pointer to the useful routes.
func (api *API) RootHandler(c *gin.Context) {
	c.String(http.StatusOK, "Call `/documents` or `/search`")
}

// GetDocumentsHandler returns every stored document.
func (api *API) GetDocumentsHandler(c *gin.Context) {
	api.mu.RLock()
	docs, err := api.index.GetDocuments()
	api.mu.RUnlock()

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents: " + err.Error()})
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocumentHandler returns one document by docid, or null when unknown.
func (api *API) GetDocumentHandler(c *gin.Context) {
	docid, err := strconv.ParseUint(c.Param("docid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document id: " + c.Param("docid")})
		return
	}

	api.mu.RLock()
	doc, err := api.index.GetDocument(model.DocID(docid))
	api.mu.RUnlock()

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read document: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// AddDocumentsHandler upserts a document or an array of documents.
func (api *API) AddDocumentsHandler(c *gin.Context) {
	start := time.Now()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body: " + err.Error()})
		return
	}
	docs, err := decodeOneOrManyDocuments(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	api.mu.Lock()
	err = api.index.AddDocuments(docs)
	api.mu.Unlock()

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, internalErrors.ErrMissingDocID) || errors.Is(err, internalErrors.ErrInvalidDocID) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"elapsed": time.Since(start).String()})
}

// DeleteDocumentsHandler deletes a docid or an array of docids. Unknown
// docids are silently skipped.
func (api *API) DeleteDocumentsHandler(c *gin.Context) {
	start := time.Now()

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body: " + err.Error()})
		return
	}
	ids, err := decodeOneOrManyDocIDs(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	api.mu.Lock()
	err = api.index.DeleteDocuments(ids)
	api.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"elapsed": time.Since(start).String()})
}

// decodeOneOrManyDocuments accepts either a single JSON object or an array
// of objects.
func decodeOneOrManyDocuments(raw []byte) ([]model.Document, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	if trimmed[0] == '[' {
		var docs []model.Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var doc model.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return []model.Document{doc}, nil
}

// decodeOneOrManyDocIDs accepts either a single docid or an array of docids.
func decodeOneOrManyDocIDs(raw []byte) ([]model.DocID, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	if trimmed[0] == '[' {
		var ids []model.DocID
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}

	var id model.DocID
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return nil, err
	}
	return []model.DocID{id}, nil
}
