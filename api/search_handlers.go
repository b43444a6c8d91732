package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// resultPreviewSize caps how many hits are hydrated into full documents in
// the search response; nb_hits still reports the total.
const resultPreviewSize = 3

// SearchHandler evaluates `?q=` against the index and returns the hit count
// plus a small preview of matching documents.
func (api *API) SearchHandler(c *gin.Context) {
	start := time.Now()

	var query services.Query
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}

	api.mu.RLock()
	docids, err := api.index.Search(query)
	var results []model.Document
	if err == nil {
		results, err = api.hydrate(docids)
	}
	api.mu.RUnlock()

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"elapsed": time.Since(start).String(),
		"nb_hits": len(docids),
		"results": results,
	})
}

// hydrate resolves the first few docids to their stored bodies. The caller
// must hold at least a read lock.
func (api *API) hydrate(docids []model.DocID) ([]model.Document, error) {
	results := make([]model.Document, 0, resultPreviewSize)
	for _, docid := range docids {
		if len(results) == resultPreviewSize {
			break
		}
		doc, err := api.index.GetDocument(docid)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			results = append(results, *doc)
		}
	}
	return results, nil
}
