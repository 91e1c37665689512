// audit/repository.go
package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Repository interface {
	LogEvent(ctx context.Context, log CacheAuditLog) error
	QueryEvents(ctx context.Context, from, to time.Time, subjectID, eventType string) ([]CacheAuditLog, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a repository writing to index at esURL.
func NewElasticsearchRepository(esURL, index string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if index == "" {
		index = "cache-audit"
	}
	return &ElasticsearchRepository{esClient: esClient, index: index}, nil
}

// LogEvent indexes one cache event.
func (r *ElasticsearchRepository) LogEvent(ctx context.Context, log CacheAuditLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: uuid.New().String(),
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

type termFilter struct {
	Term map[string]string `json:"term,omitempty"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source CacheAuditLog `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// QueryEvents searches events in [from, to], optionally filtered by subject
// and event type, newest first.
func (r *ElasticsearchRepository) QueryEvents(ctx context.Context, from, to time.Time, subjectID, eventType string) ([]CacheAuditLog, error) {
	must := []any{
		map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if subjectID != "" {
		must = append(must, termFilter{Term: map[string]string{"subject_id": subjectID}})
	}
	if eventType != "" {
		must = append(must, termFilter{Term: map[string]string{"event_type": eventType}})
	}
	query := map[string]any{
		"query": map[string]any{"bool": map[string]any{"must": must}},
		"sort":  []any{map[string]any{"timestamp": map[string]any{"order": "desc"}}},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	logs := make([]CacheAuditLog, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}
