package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irevoire/minisearch/config"
	internalErrors "github.com/irevoire/minisearch/internal/errors"
)

func TestDocumentTerms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			"terms are sorted and deduplicated",
			`{"id":1,"title":"lol lol lol"}`,
			[]string{"lol"},
		},
		{
			"terms across fields are merged",
			`{"id":1,"title":"world hello","note":"hello"}`,
			[]string{"hello", "world"},
		},
		{
			"empty tokens never become terms",
			`{"id":1,"title":"2001 !!! hello"}`,
			[]string{"hello"},
		},
		{
			"numeric id does not index itself",
			`{"id":2001,"title":"x"}`,
			[]string{"x"},
		},
		{
			"no string fields",
			`{"id":1,"count":3}`,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, documentTerms(mustDoc(t, tt.raw)))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"bob", "and", "his", "dog"}, queryTerms("bob and his dog"))
	assert.Empty(t, queryTerms(""))
	assert.Empty(t, queryTerms("123 !!!"))
	assert.Equal(t, []string{"tour"}, queryTerms("tôur"))
}

func TestDocKeyIsLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x2a, 0x00, 0x00, 0x00}, docKey(42))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, docKey(4294967295))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(config.BackendType("postgres"), t.TempDir())
	require.ErrorIs(t, err, internalErrors.ErrUnknownBackend)
}
