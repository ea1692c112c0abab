package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"}}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	ix, err := NewClient(context.Background(), Config{URL: srv.URL, Index: "meals"})
	require.NoError(t, err)
	require.NotNil(t, ix)
	return ix
}

func TestIndex_Search(t *testing.T) {
	var gotBody map[string]any
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/meals/_search"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[{"_source":{"id":3,"name":"Borscht"}},{"_source":{"id":1,"name":"Bread"}}]}}`)
	})

	total, ids, err := ix.Search(context.Background(), "bor", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []uint{3, 1}, ids)
	assert.EqualValues(t, 10, gotBody["size"])
}

func TestIndex_IndexMeal(t *testing.T) {
	var path string
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	})

	meal := &models.Meal{ID: 7, Name: "Pancakes", Available: true, Category: &models.MealCategory{Name: "Breakfast"}}
	require.NoError(t, ix.IndexMeal(context.Background(), DocFromMeal(meal)))
	assert.Equal(t, "/meals/_doc/7", path)
}

func TestIndex_DeleteMissingIsFine(t *testing.T) {
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	})

	assert.NoError(t, ix.DeleteMeal(context.Background(), 9))
}

func TestNilIndex(t *testing.T) {
	var ix *Index
	_, _, err := ix.Search(context.Background(), "x", 0, 1)
	assert.ErrorIs(t, err, ErrDisabled)

	ix, err = NewClient(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, ix)
}
