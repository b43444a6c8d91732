package backend

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/irevoire/minisearch/config"
	"github.com/irevoire/minisearch/model"
	"github.com/irevoire/minisearch/services"
)

// A small deterministic vocabulary: "and" lands in every document so
// its posting list dwarfs the others, mirroring real stop-word skew.
var benchVocabulary = []string{
	"hello", "world", "tour", "france", "documentary", "color", "red",
	"blue", "bob", "dog", "cat", "bike", "mountain", "river", "night",
	"story", "summer", "winter", "music", "silence",
}

func benchDataset(tb testing.TB, n int) []model.Document {
	tb.Helper()
	docs := make([]model.Document, 0, n)
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("%s %s and %s",
			benchVocabulary[i%len(benchVocabulary)],
			benchVocabulary[(i*7+3)%len(benchVocabulary)],
			benchVocabulary[(i*13+11)%len(benchVocabulary)],
		)
		overview := fmt.Sprintf("a %s about a %s and a %s near the %s",
			benchVocabulary[(i*3)%len(benchVocabulary)],
			benchVocabulary[(i*5+1)%len(benchVocabulary)],
			benchVocabulary[(i*11+7)%len(benchVocabulary)],
			benchVocabulary[(i*17+5)%len(benchVocabulary)],
		)
		raw := fmt.Sprintf(`{"id":%d,"title":"%s","overview":"%s"}`, i, title, overview)

		var doc model.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			tb.Fatal(err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func BenchmarkIndexing(b *testing.B) {
	docs := benchDataset(b, 1000)

	for _, backendType := range config.BackendTypes() {
		b.Run(string(backendType), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				index, err := Open(backendType, b.TempDir())
				if err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if err := index.AddDocuments(docs); err != nil {
					b.Fatal(err)
				}

				b.StopTimer()
				if err := index.Close(); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()
			}
		})
	}
}

func BenchmarkSearch(b *testing.B) {
	queries := []struct {
		name string
		q    string
	}{
		{"no_merge_small", "silence"},
		{"no_merge_large", "and"},
		{"merge_small", "hello lol"},
		{"merge_large", "bob and his dog"},
	}
	docs := benchDataset(b, 1000)

	for _, backendType := range config.BackendTypes() {
		index, err := Open(backendType, b.TempDir())
		if err != nil {
			b.Fatal(err)
		}
		if err := index.AddDocuments(docs); err != nil {
			b.Fatal(err)
		}

		for _, query := range queries {
			b.Run(fmt.Sprintf("%s/%s", query.name, backendType), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := index.Search(services.Query{Q: query.q}); err != nil {
						b.Fatal(err)
					}
				}
			})
		}

		if err := index.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
