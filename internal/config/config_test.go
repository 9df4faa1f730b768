package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/EatZeBaby/databooks/internal/config"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "DB_SCHEMA", "DATABASE_URL", "DATABASE_URL_TEMPLATE", "ALLOWED_ORIGINS", "PG_IMPORT_SCHEMA"} {
		t.Setenv(k, "")
	}

	s := config.LoadSettings(config.NewViper())
	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, config.EnvDevelopment, s.Environment)
	assert.False(t, s.Production())
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "public", s.Durable.Schema)
	assert.Empty(t, s.Durable.DatabaseURL)
	assert.Empty(t, s.AllowedOrigins)
	assert.Equal(t, "printshop", s.PostgresImportSchema)
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("DB_SCHEMA", "catalog")
	t.Setenv("USE_DBX_DATABASE_TOKEN", "true")
	t.Setenv("DBX_DB_INSTANCE_NAME", "databooks-db")
	t.Setenv("DATABASE_URL", "postgresql://app:pw@db.internal:5432/databooks?sslmode=require")

	s := config.LoadSettings(config.NewViper())
	assert.True(t, s.Production())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, s.AllowedOrigins)
	assert.Equal(t, "catalog", s.Durable.Schema)
	assert.True(t, s.Durable.UseDatabaseToken)
	assert.Equal(t, "databooks-db", s.Durable.InstanceName)
	assert.Equal(t, "postgresql://app:pw@db.internal:5432/databooks?sslmode=require", s.Durable.DatabaseURL)
}

func TestDatabaseURLTemplate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_URL_TEMPLATE", "postgresql://${PGUSER}@${PGHOST}:5432/databooks")
	t.Setenv("PGUSER", "svc")
	t.Setenv("PGHOST", "instance.cloud.databricks.com")

	s := config.LoadSettings(config.NewViper())
	assert.Equal(t, "postgresql://svc@instance.cloud.databricks.com:5432/databooks", s.Durable.DatabaseURL)
}

func TestInitLogger(t *testing.T) {
	logger, err := config.InitLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = config.InitLogger("chatty")
	assert.Error(t, err)
}
