// Package search keeps an Elasticsearch index of meals for full-text menu search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

var ErrDisabled = errors.New("search disabled")

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

// MealDoc is the indexed shape of a meal.
type MealDoc struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Available   bool   `json:"available"`
}

func DocFromMeal(m *models.Meal) MealDoc {
	doc := MealDoc{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Available:   m.Available,
	}
	if m.Category != nil {
		doc.Category = m.Category.Name
	}
	return doc
}

type Index struct {
	client *elasticsearch.Client
	index  string
}

// NewClient connects and checks the cluster answers. An empty URL yields a nil
// Index, whose methods all return ErrDisabled.
func NewClient(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	return &Index{client: client, index: cfg.Index}, nil
}

func (ix *Index) IndexMeal(ctx context.Context, doc MealDoc) error {
	if ix == nil {
		return ErrDisabled
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := ix.client.Index(ix.index, bytes.NewReader(body),
		ix.client.Index.WithContext(ctx),
		ix.client.Index.WithDocumentID(strconv.FormatUint(uint64(doc.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index meal %d: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index meal %d: %s", doc.ID, res.Status())
	}
	return nil
}

func (ix *Index) DeleteMeal(ctx context.Context, id uint) error {
	if ix == nil {
		return ErrDisabled
	}
	res, err := ix.client.Delete(ix.index, strconv.FormatUint(uint64(id), 10),
		ix.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete meal %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete meal %d: %s", id, res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over available meals and returns the total
// hit count and the matching meal ids in score order.
func (ix *Index) Search(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	if ix == nil {
		return 0, nil, ErrDisabled
	}
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"name^2", "description", "category"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"available": true},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source MealDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search decode: %w", err)
	}

	ids := make([]uint, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		ids[i] = hit.Source.ID
	}
	return r.Hits.Total.Value, ids, nil
}
