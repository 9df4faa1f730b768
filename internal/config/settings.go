package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/EatZeBaby/databooks/internal/store"
	"github.com/EatZeBaby/databooks/internal/warehouse"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Settings struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	LogLevel       string

	Durable store.Settings

	Databricks           warehouse.DatabricksConfig
	PostgresImportSchema string

	MeilisearchHost   string
	MeilisearchAPIKey string

	GCPProjectID  string
	GCSBucketName string

	SendgridAPIKey string
	MailFrom       string
	AppURL         string
}

func (s Settings) Production() bool {
	return strings.EqualFold(s.Environment, EnvProduction)
}

// NewViper returns a viper instance bound to the process environment with the
// defaults every setting falls back to.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("USE_DBX_DATABASE_TOKEN", false)
	v.SetDefault("LOG_DB_TOKEN_DEBUG", false)
	v.SetDefault("DATABRICKS_PROFILE", "DEFAULT")
	v.SetDefault("PG_IMPORT_SCHEMA", warehouse.DefaultImportSchema)
	v.SetDefault("MAIL_FROM", "noreply@databooks.dev")
	v.SetDefault("APP_URL", "http://localhost:3000")

	v.AutomaticEnv()
	return v
}

// LoadSettings reads every setting from v.
func LoadSettings(v *viper.Viper) Settings {
	s := Settings{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		Durable: store.Settings{
			DatabaseURL:      databaseURL(v),
			Schema:           v.GetString("DB_SCHEMA"),
			InstanceName:     v.GetString("DBX_DB_INSTANCE_NAME"),
			UseDatabaseToken: v.GetBool("USE_DBX_DATABASE_TOKEN"),
			LogTokenDebug:    v.GetBool("LOG_DB_TOKEN_DEBUG"),
		},

		Databricks: warehouse.DatabricksConfig{
			Profile:  v.GetString("DATABRICKS_PROFILE"),
			Host:     v.GetString("DATABRICKS_HOST"),
			Token:    v.GetString("DATABRICKS_TOKEN"),
			HTTPPath: v.GetString("DATABRICKS_HTTP_PATH"),
			Catalog:  v.GetString("DATABRICKS_CATALOG"),
			Schema:   v.GetString("DATABRICKS_SCHEMA"),
		},
		PostgresImportSchema: v.GetString("PG_IMPORT_SCHEMA"),

		MeilisearchHost:   v.GetString("MEILISEARCH_HOST"),
		MeilisearchAPIKey: v.GetString("MEILISEARCH_API_KEY"),

		GCPProjectID:  v.GetString("GCP_PROJECT_ID"),
		GCSBucketName: v.GetString("GCS_BUCKET_NAME"),

		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		MailFrom:       v.GetString("MAIL_FROM"),
		AppURL:         v.GetString("APP_URL"),
	}

	for _, origin := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			s.AllowedOrigins = append(s.AllowedOrigins, origin)
		}
	}
	return s
}

// databaseURL prefers DATABASE_URL and otherwise expands DATABASE_URL_TEMPLATE
// against the environment, e.g. postgresql://${PGUSER}:${PGPASSWORD}@${PGHOST}/db.
func databaseURL(v *viper.Viper) string {
	if url := strings.TrimSpace(v.GetString("DATABASE_URL")); url != "" {
		return url
	}
	tmpl := strings.TrimSpace(v.GetString("DATABASE_URL_TEMPLATE"))
	if tmpl == "" {
		return ""
	}
	return store.ExpandDatabaseURL(tmpl, func(key string) string {
		if val := v.GetString(key); val != "" {
			return val
		}
		return os.Getenv(key)
	})
}
