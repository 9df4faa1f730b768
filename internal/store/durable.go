package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/EatZeBaby/databooks/internal/entity"
)

var mon = monkit.Package()

const (
	tableDatasets  = "datasets"
	tableUsers     = "users"
	tableEvents    = "events"
	tableFollows   = "follows"
	tableLikes     = "likes"
	tableProfiles  = "platform_profiles"
	dialectSQLite  = "sqlite"
	defaultSchema  = "public"
	sqliteMainName = "main"
)

// Settings configures the durable store.
type Settings struct {
	DatabaseURL      string
	Schema           string
	InstanceName     string
	UseDatabaseToken bool
	LogTokenDebug    bool
}

// Durable mirrors entities into a relational database.
type Durable struct {
	db      *gorm.DB
	schema  string
	dialect string
	log     *zap.Logger
}

// NewDurable wraps an open gorm handle. An empty schema means the dialect default.
func NewDurable(db *gorm.DB, schema string, log *zap.Logger) *Durable {
	dialect := db.Dialector.Name()
	if schema == "" {
		schema = defaultSchema
		if dialect == dialectSQLite {
			schema = sqliteMainName
		}
	}
	return &Durable{db: db, schema: schema, dialect: dialect, log: log}
}

// OpenDurable connects to the configured database. It never fails hard: a
// missing or malformed url leaves the process on the volatile store alone.
func OpenDurable(ctx context.Context, s Settings, minter Minter, log *zap.Logger) (*Durable, bool) {
	if strings.TrimSpace(s.DatabaseURL) == "" {
		log.Info("DATABASE_URL not set, running on the in-memory store only")
		return nil, false
	}

	normalized, err := NormalizeDatabaseURL(s.DatabaseURL)
	if err != nil {
		log.Warn("Invalid DATABASE_URL, running on the in-memory store only", zap.Error(err))
		return nil, false
	}

	switch {
	case s.UseDatabaseToken && s.InstanceName != "" && minter != nil:
		normalized = mintedDSN(ctx, normalized, s, minter, log)
	case s.InstanceName != "":
		log.Info("Database instance configured but token minting is disabled, using DATABASE_URL password",
			zap.String("instance", s.InstanceName))
	}

	dsn, err := DriverDSN(normalized)
	if err != nil {
		log.Warn("Invalid DATABASE_URL, running on the in-memory store only", zap.Error(err))
		return nil, false
	}
	if _, err := pgx.ParseConfig(dsn); err != nil {
		log.Warn("Invalid DATABASE_URL, running on the in-memory store only", zap.Error(err))
		return nil, false
	}

	log.Info("Connecting to database", zap.String("target", SanitizedTarget(normalized)), zap.String("schema", s.Schema))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		log.Warn("Failed to open database, running on the in-memory store only", zap.Error(err))
		return nil, false
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("Failed to get database handle, running on the in-memory store only", zap.Error(err))
		return nil, false
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewDurable(db, s.Schema, log), true
}

func (d *Durable) Schema() string { return d.schema }

func (d *Durable) DB() *gorm.DB { return d.db }

func (d *Durable) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// table returns the name to hand gorm for a table in the configured schema.
func (d *Durable) table(name string) string {
	if d.dialect == dialectSQLite && d.schema == sqliteMainName {
		return name
	}
	return d.schema + "." + name
}

// Migrate creates the schema, tables and indexes when missing.
func (d *Durable) Migrate(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	db := d.db.WithContext(ctx)
	if d.dialect != dialectSQLite {
		if err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + quoteIdent(d.schema)).Error; err != nil {
			return classify(err)
		}
	}

	models := []struct {
		table string
		model any
	}{
		{tableDatasets, &entity.Dataset{}},
		{tableUsers, &entity.User{}},
		{tableEvents, &entity.Event{}},
		{tableFollows, &entity.Follow{}},
		{tableLikes, &entity.Like{}},
		{tableProfiles, &entity.PlatformProfile{}},
	}
	for _, m := range models {
		if err := db.Table(d.table(m.table)).AutoMigrate(m.model); err != nil {
			return classify(fmt.Errorf("failed to migrate %s: %w", m.table, err))
		}
	}

	for _, ix := range []struct{ name, table, columns string }{
		{"ix_events_dataset_id_created_at", tableEvents, "dataset_id, created_at"},
		{"ix_platform_profiles_user_id", tableProfiles, "user_id"},
	} {
		if err := db.Exec(d.createIndexSQL(ix.name, ix.table, ix.columns)).Error; err != nil {
			return classify(fmt.Errorf("failed to create index %s: %w", ix.name, err))
		}
	}
	return nil
}

func (d *Durable) createIndexSQL(name, table, columns string) string {
	if d.dialect == dialectSQLite {
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s.%s ON %s (%s)",
			quoteIdent(d.schema), quoteIdent(name), quoteIdent(table), columns)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s.%s (%s)",
		quoteIdent(name), quoteIdent(d.schema), quoteIdent(table), columns)
}

func (d *Durable) UpsertDataset(ctx context.Context, ds *entity.Dataset) (err error) {
	defer mon.Task()(&ctx)(&err)
	return classify(d.db.WithContext(ctx).Table(d.table(tableDatasets)).
		Clauses(clause.OnConflict{UpdateAll: true}).Create(ds).Error)
}

// GetDataset reads one dataset, running schema discovery when the configured
// schema does not hold it.
func (d *Durable) GetDataset(ctx context.Context, id string) (_ *entity.Dataset, err error) {
	defer mon.Task()(&ctx)(&err)
	return discoverByID[entity.Dataset](ctx, d, tableDatasets, id)
}

// ListDatasets reads every dataset, running schema discovery when the
// configured schema comes back empty.
func (d *Durable) ListDatasets(ctx context.Context) (_ []*entity.Dataset, err error) {
	defer mon.Task()(&ctx)(&err)
	return discover[entity.Dataset](ctx, d, tableDatasets)
}

func (d *Durable) UpsertUser(ctx context.Context, u *entity.User) (err error) {
	defer mon.Task()(&ctx)(&err)
	return classify(d.db.WithContext(ctx).Table(d.table(tableUsers)).
		Clauses(clause.OnConflict{UpdateAll: true}).Create(u).Error)
}

func (d *Durable) GetUser(ctx context.Context, id string) (_ *entity.User, err error) {
	defer mon.Task()(&ctx)(&err)
	return discoverByID[entity.User](ctx, d, tableUsers, id)
}

func (d *Durable) ListUsers(ctx context.Context) (_ []*entity.User, err error) {
	defer mon.Task()(&ctx)(&err)
	return discover[entity.User](ctx, d, tableUsers)
}

func (d *Durable) AppendEvent(ctx context.Context, e *entity.Event) (err error) {
	defer mon.Task()(&ctx)(&err)
	return classify(d.db.WithContext(ctx).Table(d.table(tableEvents)).Create(e).Error)
}

// EventFilter narrows event reads. Empty fields match everything; Limit <= 0 means no limit.
type EventFilter struct {
	DatasetID string
	ActorID   string
	Type      entity.EventType
	Limit     int
}

func (f EventFilter) match(e *entity.Event) bool {
	return (f.DatasetID == "" || e.Dataset() == f.DatasetID) &&
		(f.ActorID == "" || e.Actor() == f.ActorID) &&
		(f.Type == "" || e.Type == f.Type)
}

// ListEvents returns matching events, newest first.
func (d *Durable) ListEvents(ctx context.Context, f EventFilter) (_ []*entity.Event, err error) {
	defer mon.Task()(&ctx)(&err)

	q := d.db.WithContext(ctx).Table(d.table(tableEvents))
	if f.DatasetID != "" {
		q = q.Where("dataset_id = ?", f.DatasetID)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var events []*entity.Event
	if err := q.Order("created_at DESC").Order("id").Find(&events).Error; err != nil {
		return nil, classify(err)
	}
	return events, nil
}

// RelationFilter narrows relation reads; empty fields match everything.
type RelationFilter struct {
	UserID string
	Target string
}

func (d *Durable) relationTable(kind entity.RelationKind) (string, error) {
	switch kind {
	case entity.RelationFollow:
		return d.table(tableFollows), nil
	case entity.RelationLike:
		return d.table(tableLikes), nil
	}
	return "", fmt.Errorf("relation %q is not persisted", kind)
}

// SetRelation inserts or deletes the (user, dataset) row. Both are idempotent.
func (d *Durable) SetRelation(ctx context.Context, kind entity.RelationKind, userID, datasetID string, present bool) (err error) {
	defer mon.Task()(&ctx)(&err)

	table, err := d.relationTable(kind)
	if err != nil {
		return err
	}
	db := d.db.WithContext(ctx).Table(table)
	if !present {
		return classify(db.Where("user_id = ? AND dataset_id = ?", userID, datasetID).Delete(&entity.Follow{}).Error)
	}
	row := entity.Follow{UserID: userID, DatasetID: datasetID, CreatedAt: entity.FormatTime(time.Now())}
	return classify(db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error)
}

func (d *Durable) ListRelations(ctx context.Context, kind entity.RelationKind, f RelationFilter) (_ []entity.Relation, err error) {
	defer mon.Task()(&ctx)(&err)

	table, err := d.relationTable(kind)
	if err != nil {
		return nil, err
	}
	q := d.db.WithContext(ctx).Table(table)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Target != "" {
		q = q.Where("dataset_id = ?", f.Target)
	}

	var rows []entity.Follow
	if err := q.Order("created_at").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	out := make([]entity.Relation, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.Relation{Kind: kind, UserID: r.UserID, Target: r.DatasetID})
	}
	return out, nil
}

func (d *Durable) GetProfile(ctx context.Context, userID string) (_ *entity.PlatformProfile, err error) {
	defer mon.Task()(&ctx)(&err)
	var p entity.PlatformProfile
	if err := d.db.WithContext(ctx).Table(d.table(tableProfiles)).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (d *Durable) UpsertProfile(ctx context.Context, p *entity.PlatformProfile) (err error) {
	defer mon.Task()(&ctx)(&err)
	return classify(d.db.WithContext(ctx).Table(d.table(tableProfiles)).
		Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error)
}

// HealthReport describes the database the process is attached to.
type HealthReport struct {
	Database string   `json:"database"`
	Schema   string   `json:"schema"`
	Tables   []string `json:"tables"`
}

func (d *Durable) Health(ctx context.Context) (_ HealthReport, err error) {
	defer mon.Task()(&ctx)(&err)

	report := HealthReport{Schema: d.schema, Tables: []string{}}
	db := d.db.WithContext(ctx)

	if d.dialect == dialectSQLite {
		report.Database = dialectSQLite
		err = db.Raw(fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type = 'table' ORDER BY name", quoteIdent(d.schema))).
			Scan(&report.Tables).Error
		return report, classify(err)
	}

	if err := db.Raw("SELECT current_database()").Scan(&report.Database).Error; err != nil {
		return report, classify(err)
	}
	err = db.Raw("SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name", d.schema).
		Scan(&report.Tables).Error
	return report, classify(err)
}
