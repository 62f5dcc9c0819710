package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"
	"circ-exchange/internal/search"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultIndexName = "circ-listings"
	maxPoolSize      = 10000
)

// indexMapping keeps composition maps out of the field mapping; component
// names are open-ended and never queried.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":   {"type": "keyword"},
      "role": {"type": "keyword"},
      "company": {"properties": {
        "id":       {"type": "keyword"},
        "name":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "industry": {"type": "text", "fields": {"keyword": {"type": "keyword"}}}
      }},
      "location": {"properties": {
        "city":        {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "state":       {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "coordinates": {"type": "object", "enabled": false}
      }},
      "materials": {"properties": {
        "name":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "category": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
        "profile":  {"type": "object", "enabled": false}
      }}
    }
  }
}`

// ListingIndex stores listings in Elasticsearch for text search.
type ListingIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewListingIndex(client *elasticsearch.Client, index string, log logger.Logger) *ListingIndex {
	if index == "" {
		index = DefaultIndexName
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ListingIndex{client: client, index: index, logger: log}
}

// EnsureIndex creates the index with its mapping when missing.
func (x *ListingIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(x.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: x.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("create index: %s", res.String()))
	}
	x.logger.Info("listing index created", map[string]interface{}{"index": x.index})
	return nil
}

// Index writes listings with a single bulk request and waits for them to be
// searchable.
func (x *ListingIndex) Index(ctx context.Context, listings ...models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return err
		}
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": x.index, "_id": l.ID}}
		if err := enc.Encode(meta); err != nil {
			return apperrors.NewSearchQueryFailedError(x.index, err)
		}
		if err := enc.Encode(l); err != nil {
			return apperrors.NewSearchQueryFailedError(x.index, err)
		}
	}

	res, err := esapi.BulkRequest{Body: &body, Refresh: "wait_for"}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("bulk: %s", res.String()))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return apperrors.NewSearchQueryFailedError(x.index, err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, r := range item {
				if r.Error != nil {
					return apperrors.NewSearchQueryFailedError(x.index,
						fmt.Errorf("listing %s: %s: %s", r.ID, r.Error.Type, r.Error.Reason))
				}
			}
		}
	}

	x.logger.Debug("listings indexed", map[string]interface{}{"index": x.index, "count": len(listings)})
	return nil
}

// Pool returns every indexed listing, ordered by id.
func (x *ListingIndex) Pool(ctx context.Context) ([]models.Listing, error) {
	return x.search(ctx, map[string]interface{}{"match_all": map[string]interface{}{}})
}

// Search narrows candidates in Elasticsearch and then applies the in-memory
// filter so results match search.Index exactly.
func (x *ListingIndex) Search(ctx context.Context, f search.Filter) ([]models.Listing, error) {
	query, err := BuildListingQuery(f)
	if err != nil {
		return nil, err
	}
	candidates, err := x.search(ctx, query)
	if err != nil {
		return nil, err
	}
	return search.Search(candidates, f)
}

func (x *ListingIndex) Get(ctx context.Context, id string) (*models.Listing, error) {
	res, err := esapi.GetRequest{Index: x.index, DocumentID: id}.Do(ctx, x.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewListingNotFoundError(id)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("get: %s", res.String()))
	}

	var doc struct {
		Found  bool           `json:"found"`
		Source models.Listing `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}
	if !doc.Found {
		return nil, apperrors.NewListingNotFoundError(id)
	}
	return &doc.Source, nil
}

func (x *ListingIndex) Delete(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: x.index, DocumentID: id, Refresh: "wait_for"}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return apperrors.NewListingNotFoundError(id)
	}
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("delete: %s", res.String()))
	}
	return nil
}

func (x *ListingIndex) search(ctx context.Context, query map[string]interface{}) ([]models.Listing, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": query,
		"size":  maxPoolSize,
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
	})
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, x.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("search: %s", res.String()))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}

	listings := make([]models.Listing, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		listings = append(listings, h.Source)
	}
	return listings, nil
}

// BuildListingQuery translates a filter into a bool query. Text criteria use
// case-insensitive wildcards on keyword fields so they behave as substring
// matches.
func BuildListingQuery(f search.Filter) (map[string]interface{}, error) {
	var must, filter []interface{}

	if q := strings.TrimSpace(f.Query); q != "" {
		must = append(must, anyWildcard(q,
			"company.name.keyword", "company.industry.keyword",
			"materials.name.keyword", "materials.category.keyword"))
	}

	if material := strings.TrimSpace(f.Material); material != "" && !strings.EqualFold(material, search.All) {
		// stored names may carry padding; the exact comparison happens in memory
		must = append(must, anyWildcard(material, "materials.name.keyword"))
	}

	if loc := strings.TrimSpace(f.Location); loc != "" && !strings.EqualFold(loc, search.All) {
		must = append(must, anyWildcard(loc, "location.city.keyword", "location.state.keyword"))
	}

	if role := strings.TrimSpace(f.Role); role != "" && !strings.EqualFold(role, search.All) {
		r, err := models.ParseRole(role)
		if err != nil {
			return nil, err
		}
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"role": string(r)}})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}, nil
	}

	b := map[string]interface{}{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(filter) > 0 {
		b["filter"] = filter
	}
	return map[string]interface{}{"bool": b}, nil
}

func anyWildcard(text string, fields ...string) map[string]interface{} {
	pattern := "*" + escapeWildcard(text) + "*"
	should := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		should = append(should, map[string]interface{}{
			"wildcard": map[string]interface{}{
				f: map[string]interface{}{"value": pattern, "case_insensitive": true},
			},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Listing `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}
