package services

import (
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/entity"
)

const datasetIndex = "datasets"

// SearchIndex keeps datasets searchable in meilisearch. Without a configured
// host every method is a no-op and Enabled reports false.
type SearchIndex struct {
	client *meilisearch.Client
	logger *zap.Logger
}

func NewSearchIndex(host, apiKey string, logger *zap.Logger) (*SearchIndex, error) {
	if host == "" {
		return &SearchIndex{logger: logger}, nil
	}
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	_, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        datasetIndex,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	task, err := client.Index(datasetIndex).UpdateFilterableAttributes(&[]string{
		"visibility",
		"org_id",
		"owner_id",
		"tags",
		"source_type",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update filterable attributes: %w", err)
	}
	if _, err := client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for filterable attributes update: %w", err)
	}

	task, err = client.Index(datasetIndex).UpdateSearchableAttributes(&[]string{
		"name",
		"description",
		"tags",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update searchable attributes: %w", err)
	}
	if _, err := client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for searchable attributes update: %w", err)
	}

	return &SearchIndex{client: client, logger: logger}, nil
}

func (s *SearchIndex) Enabled() bool {
	return s != nil && s.client != nil
}

func DatasetToDocument(d *entity.Dataset) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"description": d.Description,
		"tags":        []string(d.Tags),
		"owner_id":    d.OwnerID,
		"org_id":      d.OrgID,
		"source_type": string(d.SourceType),
		"visibility":  string(d.Visibility),
		"updated_at":  d.UpdatedAt,
	}
}

// Index adds or replaces the dataset document. Failures are logged only.
func (s *SearchIndex) Index(d *entity.Dataset) {
	if !s.Enabled() {
		return
	}
	if _, err := s.client.Index(datasetIndex).AddDocuments([]map[string]interface{}{DatasetToDocument(d)}, "id"); err != nil {
		s.logger.Warn("Failed to index dataset", zap.String("dataset_id", d.ID), zap.Error(err))
	}
}

// Search returns matching dataset ids in relevance order.
func (s *SearchIndex) Search(query string, visibility entity.Visibility, limit int) ([]string, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("search index not configured")
	}
	req := &meilisearch.SearchRequest{Limit: int64(limit)}
	if visibility != "" {
		req.Filter = fmt.Sprintf("visibility = %q", visibility)
	}
	res, err := s.client.Index(datasetIndex).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform search: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if doc, ok := hit.(map[string]interface{}); ok {
			if id, ok := doc["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
