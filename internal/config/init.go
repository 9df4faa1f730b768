package config

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/EatZeBaby/databooks/internal/appcontext"
	"github.com/EatZeBaby/databooks/internal/services"
	"github.com/EatZeBaby/databooks/internal/store"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

// InitContext loads the environment and wires every collaborator. Only the
// logger and the snippet templates are required; anything else that fails to
// initialize is logged and left out.
func InitContext(ctx context.Context) (*appcontext.Context, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Warn("No .env file found, using environment variables")
	}
	settings := LoadSettings(NewViper())

	logger, err := InitLogger(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	snippets, err := services.NewSnippetRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load snippet templates: %w", err)
	}

	dbx := warehouse.NewDatabricks(settings.Databricks, logger)
	durable := InitDurable(ctx, settings.Durable, dbx, logger)

	var db *gorm.DB
	if durable != nil {
		db = durable.DB()
	}

	search, err := services.NewSearchIndex(settings.MeilisearchHost, settings.MeilisearchAPIKey, logger)
	if err != nil {
		logger.Warn("Failed to initialize search index, falling back to local search", zap.Error(err))
		search, _ = services.NewSearchIndex("", "", logger)
	}

	var gcsClient *storage.Client
	if settings.GCSBucketName != "" {
		gcsClient, err = InitGCSClient(ctx)
		if err != nil {
			logger.Warn("Failed to initialize GCS client, BigQuery keys disabled", zap.Error(err))
		}
	}

	return &appcontext.Context{
		Store:  store.New(store.NewMemory(), durable, logger),
		Logger: logger,

		Search:   search,
		Mailer:   services.NewMailer(settings.SendgridAPIKey, settings.MailFrom, settings.AppURL),
		Snippets: snippets,

		Databricks: dbx,
		Snowflake:  warehouse.NewSnowflake(logger),
		BigQuery:   warehouse.NewBigQuery(gcsClient, settings.GCSBucketName, logger),
		Postgres:   warehouse.NewPostgres(db, settings.PostgresImportSchema),

		Port:           settings.Port,
		Environment:    settings.Environment,
		AllowedOrigins: settings.AllowedOrigins,
	}, nil
}

// InitDurable opens and migrates the durable store. It returns nil when the
// database is not configured or cannot be opened.
func InitDurable(ctx context.Context, s store.Settings, minter store.Minter, logger *zap.Logger) *store.Durable {
	durable, ok := store.OpenDurable(ctx, s, minter, logger)
	if !ok {
		return nil
	}
	if err := durable.Migrate(ctx); err != nil {
		logger.Warn("Failed to migrate database, reads will discover tables at runtime", zap.Error(err))
	}
	return durable
}

func InitLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func InitGCSClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCS client: %w", err)
	}
	return client, nil
}
