package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/entity"
)

// Store coordinates the volatile store and the optional durable store.
//
// Every write lands in memory first and is then mirrored to the database in
// the same call; a failed mirror is returned to the caller while the volatile
// write stands. Reads prefer the database when one is configured, refresh the
// volatile overlay with what they find and quietly fall back to memory when
// the database errors.
type Store struct {
	mem     *Memory
	durable *Durable
	log     *zap.Logger
	now     func() time.Time
	locks   keyedMutex
}

type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a Store. durable may be nil.
func New(mem *Memory, durable *Durable, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		mem:     mem,
		durable: durable,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Memory() *Memory { return s.mem }

// Durable returns the durable store, if configured.
func (s *Store) Durable() (*Durable, bool) { return s.durable, s.durable != nil }

func (s *Store) Now() time.Time { return s.now() }

func (s *Store) mirror(op string, write func(*Durable) error) error {
	if s.durable == nil {
		return nil
	}
	if err := write(s.durable); err != nil {
		s.log.Warn("Durable write failed, keeping volatile state", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) degraded(op string, err error) {
	s.log.Debug("Durable read failed, serving volatile state", zap.String("op", op), zap.Error(err))
}

// DatasetFilter narrows dataset listings. Empty fields match everything.
type DatasetFilter struct {
	Query      string
	OwnerID    string
	OrgID      string
	Visibility entity.Visibility
	Tag        string
	Company    string
}

func (f DatasetFilter) Match(d *entity.Dataset) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Description), q) {
			return false
		}
	}
	return (f.OwnerID == "" || d.OwnerID == f.OwnerID) &&
		(f.OrgID == "" || d.OrgID == f.OrgID) &&
		(f.Visibility == "" || d.Visibility == f.Visibility) &&
		(f.Tag == "" || d.HasTag(f.Tag)) &&
		(f.Company == "" || strings.EqualFold(d.Company, f.Company))
}

func (s *Store) CreateDataset(ctx context.Context, req entity.DatasetCreate) (*entity.Dataset, error) {
	d, err := entity.NewDataset(req, s.now())
	if err != nil {
		return nil, err
	}
	return s.PutDataset(ctx, d)
}

// PutDataset stores an already constructed dataset.
func (s *Store) PutDataset(ctx context.Context, d *entity.Dataset) (*entity.Dataset, error) {
	if err := entity.Validate(d); err != nil {
		return nil, err
	}
	s.mem.Datasets.Upsert(d.ID, d)
	return d, s.mirror("upsert dataset", func(db *Durable) error { return db.UpsertDataset(ctx, d) })
}

// PatchDataset applies p to the dataset. The returned dataset is non-nil
// whenever the volatile write happened, even if the durable mirror failed.
func (s *Store) PatchDataset(ctx context.Context, id string, p entity.DatasetPatch) (*entity.Dataset, error) {
	defer s.locks.Lock("dataset|" + id)()

	d, ok := s.GetDataset(ctx, id)
	if !ok {
		return nil, ErrNotFound.New("dataset %s", id)
	}
	if err := d.Apply(p, s.now()); err != nil {
		return nil, err
	}
	s.mem.Datasets.Upsert(d.ID, d)
	return d, s.mirror("patch dataset", func(db *Durable) error { return db.UpsertDataset(ctx, d) })
}

func (s *Store) GetDataset(ctx context.Context, id string) (*entity.Dataset, bool) {
	if s.durable != nil {
		d, err := s.durable.GetDataset(ctx, id)
		switch {
		case err == nil:
			s.mem.Datasets.Upsert(d.ID, d)
			return d, true
		case !ErrNotFound.Has(err):
			s.degraded("get dataset", err)
		}
	}
	return s.mem.Datasets.Get(id)
}

func (s *Store) refreshDatasets(ctx context.Context) {
	if s.durable == nil {
		return
	}
	rows, err := s.durable.ListDatasets(ctx)
	if err != nil {
		s.degraded("list datasets", err)
		return
	}
	for _, d := range rows {
		s.mem.Datasets.Upsert(d.ID, d)
	}
}

// ListDatasets returns matching datasets, newest first.
func (s *Store) ListDatasets(ctx context.Context, f DatasetFilter) []*entity.Dataset {
	s.refreshDatasets(ctx)
	out := slices.Collect(s.mem.Datasets.List(f.Match))
	slices.SortStableFunc(out, func(a, b *entity.Dataset) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	return out
}

// DeriveDataset builds a best-effort placeholder for a dataset id that only
// appears in the event log.
func (s *Store) DeriveDataset(ctx context.Context, id string) (*entity.Dataset, bool) {
	events := s.ListEvents(ctx, EventFilter{DatasetID: id})
	if len(events) == 0 {
		return nil, false
	}
	source := events[0]
	for _, e := range events {
		if e.Type == entity.EventDatasetPublished {
			source = e
			break
		}
	}
	name := source.Payload("name")
	if name == "" {
		name = "Dataset"
	}
	owner := source.Actor()
	if owner == "" {
		owner = entity.DemoUserID
	}
	return &entity.Dataset{
		ID:                 id,
		Name:               name,
		Tags:               []string{},
		OwnerID:            owner,
		OrgID:              entity.DefaultOrgID,
		SourceType:         entity.SourceTypeUnknown,
		SourceMetadataJSON: map[string]any{},
		Visibility:         entity.VisibilityPublic,
		CreatedAt:          source.CreatedAt,
		UpdatedAt:          source.CreatedAt,
	}, true
}

func (s *Store) CreateUser(ctx context.Context, req entity.UserCreate) (*entity.User, error) {
	u, err := entity.NewUser(req, s.now())
	if err != nil {
		return nil, err
	}
	return s.PutUser(ctx, u)
}

func (s *Store) PutUser(ctx context.Context, u *entity.User) (*entity.User, error) {
	if err := entity.Validate(u); err != nil {
		return nil, err
	}
	s.mem.Users.Upsert(u.ID, u)
	return u, s.mirror("upsert user", func(db *Durable) error { return db.UpsertUser(ctx, u) })
}

// PatchUser applies p with tools capped at toolCap. The demo identity is
// materialized on its first edit.
func (s *Store) PatchUser(ctx context.Context, id string, p entity.UserPatch, toolCap int) (*entity.User, error) {
	defer s.locks.Lock("user|" + id)()

	u, ok := s.GetUser(ctx, id)
	if !ok {
		if id != entity.DemoUserID {
			return nil, ErrNotFound.New("user %s", id)
		}
		u = entity.DemoUser(s.now())
	}
	if err := u.Apply(p, toolCap); err != nil {
		return nil, err
	}
	s.mem.Users.Upsert(u.ID, u)
	return u, s.mirror("patch user", func(db *Durable) error { return db.UpsertUser(ctx, u) })
}

// GetUser checks the volatile overlay before the database.
func (s *Store) GetUser(ctx context.Context, id string) (*entity.User, bool) {
	if u, ok := s.mem.Users.Get(id); ok {
		return u, true
	}
	if s.durable == nil {
		return nil, false
	}
	u, err := s.durable.GetUser(ctx, id)
	if err != nil {
		if !ErrNotFound.Has(err) {
			s.degraded("get user", err)
		}
		return nil, false
	}
	s.mem.Users.Upsert(u.ID, u)
	return u, true
}

// Me returns the demo identity, stored or default.
func (s *Store) Me(ctx context.Context) *entity.User {
	if u, ok := s.GetUser(ctx, entity.DemoUserID); ok {
		return u
	}
	return entity.DemoUser(s.now())
}

// ListUsers returns users whose name, email or company contains q, by name.
func (s *Store) ListUsers(ctx context.Context, q string) []*entity.User {
	if s.durable != nil {
		rows, err := s.durable.ListUsers(ctx)
		if err != nil {
			s.degraded("list users", err)
		}
		for _, u := range rows {
			s.mem.Users.Upsert(u.ID, u)
		}
	}
	q = strings.ToLower(q)
	out := slices.Collect(s.mem.Users.List(func(u *entity.User) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.Company), q)
	}))
	slices.SortStableFunc(out, func(a, b *entity.User) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *Store) AppendEvent(ctx context.Context, typ entity.EventType, payload map[string]any, actorID, datasetID string) (*entity.Event, error) {
	e, err := entity.NewEvent(typ, payload, actorID, datasetID, s.now())
	if err != nil {
		return nil, err
	}
	s.mem.Events.Append(e)
	return e, s.mirror("append event", func(db *Durable) error { return db.AppendEvent(ctx, e) })
}

// ListEvents merges both stores, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) []*entity.Event {
	var out []*entity.Event
	seen := map[string]bool{}

	volatile := slices.Collect(s.mem.Events.List(f.match))
	slices.Reverse(volatile)
	for _, e := range volatile {
		seen[e.ID] = true
		out = append(out, e)
	}

	if s.durable != nil {
		rows, err := s.durable.ListEvents(ctx, f)
		if err != nil {
			s.degraded("list events", err)
		}
		for _, e := range rows {
			if !seen[e.ID] {
				seen[e.ID] = true
				out = append(out, e)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b *entity.Event) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// EventCursor is the position of the next event appended to the volatile log.
func (s *Store) EventCursor() int {
	return s.mem.Events.Len()
}

// EventsSince serves the push feed from the volatile log.
func (s *Store) EventsSince(cursor int) ([]*entity.Event, int) {
	return s.mem.Events.Since(cursor)
}

func (s *Store) SetFollow(ctx context.Context, userID, datasetID string, present bool) error {
	return s.setRelation(ctx, entity.RelationFollow, userID, datasetID, present)
}

func (s *Store) SetLike(ctx context.Context, userID, datasetID string, present bool) error {
	return s.setRelation(ctx, entity.RelationLike, userID, datasetID, present)
}

// SetTagFollow toggles a tag subscription. Tag follows live in memory only.
func (s *Store) SetTagFollow(userID, tag string, present bool) {
	defer s.locks.Lock(string(entity.RelationTag) + "|" + userID + "|" + tag)()
	s.mem.TagFollows.Set(userID, strings.ToLower(tag), present)
}

func (s *Store) TagFollowers(tag string) int {
	return s.mem.TagFollows.Count(strings.ToLower(tag))
}

func (s *Store) FollowsTag(userID, tag string) bool {
	return s.mem.TagFollows.Has(userID, strings.ToLower(tag))
}

func (s *Store) FollowedTags(userID string) []string {
	return s.mem.TagFollows.Targets(userID)
}

// setRelation serializes toggles per (kind, user, dataset) so the two stores
// see the same final state for concurrent toggles of one key.
func (s *Store) setRelation(ctx context.Context, kind entity.RelationKind, userID, datasetID string, present bool) error {
	defer s.locks.Lock(string(kind) + "|" + userID + "|" + datasetID)()

	s.mem.relations(kind).Set(userID, datasetID, present)
	return s.mirror("set "+string(kind), func(db *Durable) error {
		return db.SetRelation(ctx, kind, userID, datasetID, present)
	})
}

// Relations lists relation pairs matching f, preferring the database.
func (s *Store) Relations(ctx context.Context, kind entity.RelationKind, f RelationFilter) []entity.Relation {
	if s.durable != nil && kind != entity.RelationTag {
		rows, err := s.durable.ListRelations(ctx, kind, f)
		if err == nil {
			return rows
		}
		s.degraded("list relations", err)
	}

	r := s.mem.relations(kind)
	out := []entity.Relation{}
	switch {
	case f.UserID != "" && f.Target != "":
		if r.Has(f.UserID, f.Target) {
			out = append(out, entity.Relation{Kind: kind, UserID: f.UserID, Target: f.Target})
		}
	case f.UserID != "":
		for _, t := range r.Targets(f.UserID) {
			out = append(out, entity.Relation{Kind: kind, UserID: f.UserID, Target: t})
		}
	case f.Target != "":
		for _, u := range r.Users(f.Target) {
			out = append(out, entity.Relation{Kind: kind, UserID: u, Target: f.Target})
		}
	}
	return out
}

// HasRelation reports the current state of one relation key.
func (s *Store) HasRelation(ctx context.Context, kind entity.RelationKind, userID, target string) bool {
	return len(s.Relations(ctx, kind, RelationFilter{UserID: userID, Target: target})) > 0
}

func targets(rels []entity.Relation) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.Target)
	}
	return out
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*entity.PlatformProfile, bool) {
	if s.durable != nil {
		p, err := s.durable.GetProfile(ctx, userID)
		switch {
		case err == nil:
			s.mem.Profiles.Upsert(userID, p)
			return p, true
		case !ErrNotFound.Has(err):
			s.degraded("get profile", err)
		}
	}
	return s.mem.Profiles.Get(userID)
}

// PutProfile creates or replaces the user's platform profile.
func (s *Store) PutProfile(ctx context.Context, userID string, platform entity.PlatformType, config map[string]any) (*entity.PlatformProfile, error) {
	defer s.locks.Lock("profile|" + userID)()

	p, err := entity.NewPlatformProfile(userID, platform, config)
	if err != nil {
		return nil, err
	}
	if existing, ok := s.GetProfile(ctx, userID); ok {
		p.ID = existing.ID
	}
	s.mem.Profiles.Upsert(userID, p)
	return p, s.mirror("upsert profile", func(db *Durable) error { return db.UpsertProfile(ctx, p) })
}

// Health reports on the durable store.
func (s *Store) Health(ctx context.Context) (HealthReport, error) {
	if s.durable == nil {
		return HealthReport{}, ErrConnectivity.New("no database configured")
	}
	return s.durable.Health(ctx)
}

// BackfillResult summarizes a published-event backfill.
type BackfillResult struct {
	TotalDatasets int `json:"total_datasets"`
	EventsCreated int `json:"events_created"`
}

// BackfillPublished appends a dataset.published event for every dataset that lacks one.
func (s *Store) BackfillPublished(ctx context.Context, actorID string) (BackfillResult, error) {
	datasets := s.ListDatasets(ctx, DatasetFilter{})
	published := map[string]bool{}
	for _, e := range s.ListEvents(ctx, EventFilter{Type: entity.EventDatasetPublished}) {
		published[e.Dataset()] = true
	}

	result := BackfillResult{TotalDatasets: len(datasets)}
	var group errs.Group
	for _, d := range datasets {
		if published[d.ID] {
			continue
		}
		_, err := s.AppendEvent(ctx, entity.EventDatasetPublished, map[string]any{"name": d.Name}, actorID, d.ID)
		if err != nil && !IsDurableFailure(err) {
			group.Add(err)
			continue
		}
		group.Add(err)
		result.EventsCreated++
	}
	return result, group.Err()
}
