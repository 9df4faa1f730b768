package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var (
	// ErrNoKey is returned when a user has not uploaded a service-account key.
	ErrNoKey = errors.New("no BigQuery service account key uploaded")
	// ErrInvalidKey marks uploads that are not service-account JSON keys.
	ErrInvalidKey = errors.New("key file is not a service account key")
)

type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccountKey checks that raw is a service-account JSON key.
func ParseServiceAccountKey(raw []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key.Type != "service_account" || key.ProjectID == "" || key.ClientEmail == "" {
		return nil, ErrInvalidKey
	}
	return &key, nil
}

// BigQuery keeps per-user service-account keys in a GCS bucket and uses them
// to reach BigQuery.
type BigQuery struct {
	gcs    *storage.Client
	bucket string
	logger *zap.Logger
}

func NewBigQuery(gcs *storage.Client, bucket string, logger *zap.Logger) *BigQuery {
	return &BigQuery{gcs: gcs, bucket: bucket, logger: logger}
}

func (b *BigQuery) Enabled() bool {
	return b != nil && b.gcs != nil && b.bucket != ""
}

func KeyObjectPath(userID string) string {
	return "connectors/bigquery/" + userID + "/sa_key"
}

// StoreKey uploads a user's key, replacing any previous one.
func (b *BigQuery) StoreKey(ctx context.Context, userID string, raw []byte) (*ServiceAccountKey, error) {
	if !b.Enabled() {
		return nil, fmt.Errorf("GCS bucket is not configured")
	}
	key, err := ParseServiceAccountKey(raw)
	if err != nil {
		return nil, err
	}

	w := b.gcs.Bucket(b.bucket).Object(KeyObjectPath(userID)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload key file to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return key, nil
}

func (b *BigQuery) loadKey(ctx context.Context, userID string) ([]byte, error) {
	if !b.Enabled() {
		return nil, fmt.Errorf("GCS bucket is not configured")
	}
	rc, err := b.gcs.Bucket(b.bucket).Object(KeyObjectPath(userID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key file from GCS: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file from GCS: %w", err)
	}
	return raw, nil
}

// Test authenticates with the user's stored key and samples the project's datasets.
func (b *BigQuery) Test(ctx context.Context, userID string) TestResult {
	raw, err := b.loadKey(ctx, userID)
	if err != nil {
		return failed(err)
	}
	key, err := ParseServiceAccountKey(raw)
	if err != nil {
		return failed(err)
	}
	conf, err := google.JWTConfigFromJSON(raw, bigquery.Scope)
	if err != nil {
		return failed(fmt.Errorf("failed to parse key file: %w", err))
	}

	client, err := bigquery.NewClient(ctx, key.ProjectID, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		b.logger.Error("Failed to create BigQuery client", zap.Error(err))
		return failed(err)
	}
	defer client.Close()

	datasets := []string{}
	it := client.Datasets(ctx)
	for len(datasets) < 10 {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			b.logger.Error("Failed to list BigQuery datasets", zap.Error(err))
			return failed(err)
		}
		datasets = append(datasets, ds.DatasetID)
	}

	return TestResult{OK: true, Details: map[string]any{
		"project":         key.ProjectID,
		"client_email":    key.ClientEmail,
		"datasets_sample": datasets,
	}}
}
