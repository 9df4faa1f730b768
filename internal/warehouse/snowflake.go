package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"
)

// SnowflakeConfig holds account credentials. Empty fields are filled from the
// environment by WithEnv.
type SnowflakeConfig struct {
	Account   string `json:"account"`
	User      string `json:"user"`
	Password  string `json:"password"`
	Warehouse string `json:"warehouse"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
	Role      string `json:"role"`
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c SnowflakeConfig) WithEnv() SnowflakeConfig {
	c.Account = fallback(c.Account, firstEnv("SNOW_ACCOUNT", "SNOWFLAKE_ACCOUNT"))
	c.User = fallback(c.User, firstEnv("SNOW_USERNAME", "SNOWFLAKE_USER"))
	c.Password = fallback(c.Password, firstEnv("SNOW_PWD", "SNOWFLAKE_PASSWORD"))
	c.Warehouse = fallback(c.Warehouse, firstEnv("SNOW_WAREHOUSE", "SNOWFLAKE_WAREHOUSE"))
	c.Database = fallback(c.Database, firstEnv("SNOW_DATABASE", "SNOWFLAKE_DATABASE"))
	c.Schema = fallback(c.Schema, firstEnv("SNOW_SCHEMA", "SNOWFLAKE_SCHEMA"))
	c.Role = fallback(c.Role, firstEnv("SNOW_ROLE", "SNOWFLAKE_ROLE"))
	return c
}

func (c SnowflakeConfig) complete() bool {
	return c.Account != "" && c.User != "" && c.Password != ""
}

// MaskSecret keeps the first and last keep characters of s.
func MaskSecret(s string, keep int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keep*2 {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep*2) + s[len(s)-keep:]
}

func (c SnowflakeConfig) dsn() (string, error) {
	cfg := &gosnowflake.Config{
		Account:      c.Account,
		User:         c.User,
		Password:     c.Password,
		Warehouse:    c.Warehouse,
		Database:     c.Database,
		Schema:       c.Schema,
		Role:         c.Role,
		LoginTimeout: 30 * time.Second,
	}
	return gosnowflake.DSN(cfg)
}

type Snowflake struct {
	logger *zap.Logger
}

func NewSnowflake(logger *zap.Logger) *Snowflake {
	return &Snowflake{logger: logger}
}

// Test connects with cfg (completed from the environment) and collects a few
// diagnostics about the session.
func (s *Snowflake) Test(ctx context.Context, cfg SnowflakeConfig) TestResult {
	cfg = cfg.WithEnv()
	s.logger.Info("Snowflake test",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("password", MaskSecret(cfg.Password, 2)),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
	)
	if !cfg.complete() {
		return TestResult{OK: false, Error: "Missing account/user/password (env or body)"}
	}

	dsn, err := cfg.dsn()
	if err != nil {
		return failed(fmt.Errorf("failed to build Snowflake DSN: %w", err))
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return failed(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		s.logger.Error("Snowflake test: connection failed", zap.Error(err))
		return failed(err)
	}

	details := map[string]any{}
	var version, account, role, warehouse, database, schema sql.NullString
	err = db.QueryRowContext(ctx,
		"SELECT CURRENT_VERSION(), CURRENT_ACCOUNT(), CURRENT_ROLE(), CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA()",
	).Scan(&version, &account, &role, &warehouse, &database, &schema)
	if err != nil {
		s.logger.Error("Snowflake test: session query failed", zap.Error(err))
		return failed(err)
	}
	details["version"] = version.String
	details["account"] = account.String
	details["role"] = role.String
	details["warehouse"] = warehouse.String
	details["database"] = database.String
	details["schema"] = schema.String

	if dbs, err := showNames(ctx, db, "SHOW DATABASES", 10); err == nil {
		details["databases"] = dbs
	} else {
		s.logger.Warn("Snowflake test: list databases failed", zap.Error(err))
	}
	if cfg.Database != "" {
		if schemas, err := showNames(ctx, db, fmt.Sprintf("SHOW SCHEMAS IN DATABASE %s", cfg.Database), 10); err == nil {
			details["schemas_sample"] = schemas
		}
		if cfg.Schema != "" {
			if tables, err := showNames(ctx, db, fmt.Sprintf("SHOW TABLES IN SCHEMA %s.%s", cfg.Database, cfg.Schema), 10); err == nil {
				details["tables_sample"] = tables
			}
		}
	}
	return TestResult{OK: true, Details: details}
}

// showNames runs a SHOW command and returns the "name" column of the first n rows.
func showNames(ctx context.Context, db *sql.DB, query string, n int) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	nameIdx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "name") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("no name column in %q", query)
	}

	names := []string{}
	for rows.Next() && len(names) < n {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		names = append(names, values[nameIdx].String)
	}
	return names, rows.Err()
}
