// Package seed fills the catalog with demo users and activity.
package seed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/EatZeBaby/databooks/internal/entity"
	"github.com/EatZeBaby/databooks/internal/store"
)

var (
	DefaultCompanies = []string{"Renoir", "Apex", "Canva", "Lumina", "Verso"}
	DefaultDomains   = []string{"marketing", "sales", "finance", "legal", "supply chain", "hr"}

	jobTitles = []string{
		"Data Engineer",
		"Analytics Engineer",
		"Data Scientist",
		"Data Analyst",
		"Analytics Manager",
		"Data Product Manager",
		"BI Developer",
		"Data Governance Lead",
	}
	platforms = []string{"databricks", "snowflake", "bigquery", "redshift"}
)

type weightedEvent struct {
	typ    entity.EventType
	weight float64
}

// activityMix is the distribution of generated interactions.
var activityMix = []weightedEvent{
	{entity.EventDatasetConnected, 0.4},
	{entity.EventDatasetRefreshed, 0.2},
	{entity.EventDatasetLiked, 0.25},
	{entity.EventUserFollowed, 0.15},
}

// Seeder writes generated data through the store so both the volatile and the
// durable side receive it.
type Seeder struct {
	store *store.Store
	faker *gofakeit.Faker
	log   *zap.Logger
}

// New returns a Seeder. A zero seed picks a random one.
func New(s *store.Store, seed int64, log *zap.Logger) *Seeder {
	return &Seeder{store: s, faker: gofakeit.New(seed), log: log}
}

type UsersRequest struct {
	Companies []string `json:"companies"`
	Domains   []string `json:"domains"`
	PerDomain int      `json:"per_domain"`
}

type UsersResult struct {
	Created   int      `json:"created"`
	Companies []string `json:"companies"`
	Domains   []string `json:"domains"`
	PerDomain int      `json:"per_domain"`
}

// AvatarURL returns a generated initials avatar for name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name)
}

// put stores u and keeps going on durable failures, which are collected in group.
func (s *Seeder) put(ctx context.Context, u *entity.User, group *errs.Group) bool {
	_, err := s.store.PutUser(ctx, u)
	if err != nil && !store.IsDurableFailure(err) {
		group.Add(err)
		return false
	}
	group.Add(err)
	return true
}

// SeedUsers creates PerDomain users for every company and business domain.
func (s *Seeder) SeedUsers(ctx context.Context, req UsersRequest) (UsersResult, error) {
	if len(req.Companies) == 0 {
		req.Companies = DefaultCompanies
	}
	if len(req.Domains) == 0 {
		req.Domains = DefaultDomains
	}
	req.PerDomain = max(req.PerDomain, 1)

	result := UsersResult{Companies: req.Companies, Domains: req.Domains, PerDomain: req.PerDomain}
	var group errs.Group
	for _, company := range req.Companies {
		mailDomain := strings.ToLower(strings.ReplaceAll(company, " ", "")) + ".example.com"
		for _, domain := range req.Domains {
			for range req.PerDomain {
				name := s.faker.Name()
				local := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(name), " ", "."), "'", "")
				u, err := entity.NewUser(entity.UserCreate{
					ID:         "user-" + s.faker.UUID(),
					Name:       name,
					Email:      local + "@" + mailDomain,
					AvatarURL:  AvatarURL(name),
					JobTitle:   s.faker.RandomString(jobTitles),
					Company:    company,
					Subsidiary: titleCase(domain),
					Tools:      s.pick(platforms, 2),
				}, s.store.Now())
				if err != nil {
					group.Add(err)
					continue
				}
				if s.put(ctx, u, &group) {
					result.Created++
				}
			}
		}
	}
	if err := group.Err(); err != nil {
		s.log.Warn("Seeding users finished with errors", zap.Int("created", result.Created), zap.Error(err))
		return result, err
	}
	return result, nil
}

type ActivityResult struct {
	Users   int    `json:"users"`
	Events  int    `json:"events"`
	Likes   int    `json:"likes"`
	Follows int    `json:"follows"`
	Note    string `json:"note,omitempty"`
}

// SeedActivity adds users and then random interactions with the existing datasets.
func (s *Seeder) SeedActivity(ctx context.Context, users, interactions int) (ActivityResult, error) {
	var result ActivityResult
	var group errs.Group

	for range users {
		name := s.faker.Name()
		u, err := entity.NewUser(entity.UserCreate{
			ID:        "user-" + s.faker.UUID(),
			Name:      name,
			Email:     s.faker.Email(),
			AvatarURL: AvatarURL(name),
			Tools:     s.pick(platforms, 1),
		}, s.store.Now())
		if err != nil {
			group.Add(err)
			continue
		}
		if s.put(ctx, u, &group) {
			result.Users++
		}
	}

	datasets := s.store.ListDatasets(ctx, store.DatasetFilter{})
	if len(datasets) == 0 {
		result.Note = "No datasets available to generate activity."
		return result, group.Err()
	}
	actors := []string{}
	for _, u := range s.store.ListUsers(ctx, "") {
		actors = append(actors, u.ID)
	}
	if len(actors) == 0 {
		actors = []string{entity.DemoUserID}
	}

	for range interactions {
		d := datasets[s.faker.Number(0, len(datasets)-1)]
		actor := actors[s.faker.Number(0, len(actors)-1)]
		typ := s.nextEventType()

		var payload map[string]any
		var err error
		switch typ {
		case entity.EventDatasetConnected:
			payload = map[string]any{"platform": s.faker.RandomString(platforms)}
		case entity.EventDatasetRefreshed:
			payload = map[string]any{"delta_rows": s.faker.Number(100, 10000)}
		case entity.EventDatasetLiked:
			payload = map[string]any{"like": true}
			err = s.store.SetLike(ctx, actor, d.ID, true)
			result.Likes++
		case entity.EventUserFollowed:
			payload = map[string]any{"follow": true}
			err = s.store.SetFollow(ctx, actor, d.ID, true)
			result.Follows++
		}
		group.Add(err)

		_, err = s.store.AppendEvent(ctx, typ, payload, actor, d.ID)
		if err != nil && !store.IsDurableFailure(err) {
			group.Add(err)
			continue
		}
		group.Add(err)
		result.Events++
	}

	if err := group.Err(); err != nil {
		s.log.Warn("Seeding activity finished with errors", zap.Int("events", result.Events), zap.Error(err))
		return result, err
	}
	return result, nil
}

// BulkUsers adds count generic users at ExampleCorp.
func (s *Seeder) BulkUsers(ctx context.Context, count int) (int, error) {
	created := 0
	var group errs.Group
	for range count {
		id := "user-" + s.faker.UUID()
		name := fmt.Sprintf("User %s", id[5:11])
		u, err := entity.NewUser(entity.UserCreate{
			ID:         id,
			Name:       name,
			Email:      id[5:11] + "@example.com",
			AvatarURL:  AvatarURL(name),
			JobTitle:   s.faker.RandomString([]string{"Data Engineer", "Analyst", "Scientist", "PM"}),
			Company:    "ExampleCorp",
			Subsidiary: s.faker.RandomString([]string{"Analytics", "BI", "Platform"}),
			Tools:      s.pick(platforms, 1),
		}, s.store.Now())
		if err != nil {
			group.Add(err)
			continue
		}
		if s.put(ctx, u, &group) {
			created++
		}
	}
	return created, group.Err()
}

func (s *Seeder) nextEventType() entity.EventType {
	r := s.faker.Float64Range(0, 1)
	for _, w := range activityMix {
		if r < w.weight {
			return w.typ
		}
		r -= w.weight
	}
	return activityMix[len(activityMix)-1].typ
}

// pick returns n distinct elements of from in random order.
func (s *Seeder) pick(from []string, n int) []string {
	shuffled := append([]string(nil), from...)
	s.faker.ShuffleStrings(shuffled)
	return shuffled[:min(n, len(shuffled))]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
