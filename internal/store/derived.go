package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EatZeBaby/databooks/internal/entity"
)

type Social struct {
	DatasetID string `json:"dataset_id"`
	Followers int    `json:"followers"`
	Likes     int    `json:"likes"`
	Following bool   `json:"following"`
	Liked     bool   `json:"liked"`
}

// DatasetSocial counts followers and likes and reports userID's own state.
func (s *Store) DatasetSocial(ctx context.Context, datasetID, userID string) Social {
	var followers, likers []entity.Relation

	// fan-out only; Relations degrades to the volatile store instead of failing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		followers = s.Relations(gctx, entity.RelationFollow, RelationFilter{Target: datasetID})
		return nil
	})
	g.Go(func() error {
		likers = s.Relations(gctx, entity.RelationLike, RelationFilter{Target: datasetID})
		return nil
	})
	_ = g.Wait()

	contains := func(rels []entity.Relation) bool {
		return slices.ContainsFunc(rels, func(r entity.Relation) bool { return r.UserID == userID })
	}
	return Social{
		DatasetID: datasetID,
		Followers: len(followers),
		Likes:     len(likers),
		Following: contains(followers),
		Liked:     contains(likers),
	}
}

type UserSocial struct {
	Following []string `json:"following"`
	Liked     []string `json:"liked"`
}

func (s *Store) UserSocial(ctx context.Context, userID string) UserSocial {
	var out UserSocial

	// fan-out only; Relations degrades to the volatile store instead of failing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Following = targets(s.Relations(gctx, entity.RelationFollow, RelationFilter{UserID: userID}))
		return nil
	})
	g.Go(func() error {
		out.Liked = targets(s.Relations(gctx, entity.RelationLike, RelationFilter{UserID: userID}))
		return nil
	})
	_ = g.Wait()
	return out
}

type UserActivity struct {
	Liked     []*entity.Dataset `json:"liked"`
	Following []*entity.Dataset `json:"following"`
}

// UserActivity resolves the user's liked and followed datasets. Ids no store
// knows about are skipped.
func (s *Store) UserActivity(ctx context.Context, userID string) UserActivity {
	social := s.UserSocial(ctx, userID)
	resolve := func(ids []string) []*entity.Dataset {
		out := []*entity.Dataset{}
		for _, id := range ids {
			if d, ok := s.GetDataset(ctx, id); ok {
				out = append(out, d)
			}
		}
		return out
	}
	return UserActivity{Liked: resolve(social.Liked), Following: resolve(social.Following)}
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagCounts counts datasets per tag, most used first.
func (s *Store) TagCounts(ctx context.Context) []TagCount {
	counts := map[string]int{}
	for _, d := range s.ListDatasets(ctx, DatasetFilter{}) {
		for _, t := range d.Tags {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Tag, b.Tag))
	})
	return out
}

// DatasetsByTag lists the datasets carrying tag, ignoring case.
func (s *Store) DatasetsByTag(ctx context.Context, tag string) []*entity.Dataset {
	return s.ListDatasets(ctx, DatasetFilter{Tag: tag})
}

const UnknownCompany = "Unknown"

type CompanyCount struct {
	Company string `json:"company"`
	Users   int    `json:"users"`
}

func companyOf(u *entity.User) string {
	if strings.TrimSpace(u.Company) == "" {
		return UnknownCompany
	}
	return u.Company
}

// Companies groups users by company, alphabetically ignoring case.
func (s *Store) Companies(ctx context.Context) []CompanyCount {
	counts := map[string]int{}
	for _, u := range s.ListUsers(ctx, "") {
		counts[companyOf(u)]++
	}
	out := make([]CompanyCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CompanyCount{Company: c, Users: n})
	}
	slices.SortFunc(out, func(a, b CompanyCount) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a.Company), strings.ToLower(b.Company)), cmp.Compare(a.Company, b.Company))
	})
	return out
}

type CompanyOverview struct {
	Company  string            `json:"company"`
	Users    []*entity.User    `json:"users"`
	Datasets []*entity.Dataset `json:"datasets"`
	Activity []*entity.Event   `json:"activity"`
}

const companyActivityLimit = 100

// CompanyOverview gathers a company's users, the datasets they own or that are
// labeled with the company, and the latest activity around either.
func (s *Store) CompanyOverview(ctx context.Context, company string) CompanyOverview {
	members := map[string]bool{}
	users := []*entity.User{}
	for _, u := range s.ListUsers(ctx, "") {
		if strings.EqualFold(companyOf(u), company) {
			users = append(users, u)
			members[u.ID] = true
		}
	}

	out := CompanyOverview{Company: company, Users: users, Datasets: []*entity.Dataset{}, Activity: []*entity.Event{}}

	owned := map[string]bool{}
	for _, d := range s.ListDatasets(ctx, DatasetFilter{}) {
		if members[d.OwnerID] || strings.EqualFold(d.Company, company) {
			out.Datasets = append(out.Datasets, d)
			owned[d.ID] = true
		}
	}
	for _, e := range s.ListEvents(ctx, EventFilter{}) {
		if members[e.Actor()] || owned[e.Dataset()] {
			out.Activity = append(out.Activity, e)
			if len(out.Activity) == companyActivityLimit {
				break
			}
		}
	}
	return out
}

type Health struct {
	FreshnessHours   float64 `json:"freshness_hours"`
	SchemaChanges30d int     `json:"schema_changes_30d"`
}

type Engagement struct {
	DatasetID    string   `json:"dataset_id"`
	Followers    int      `json:"followers"`
	Likes        int      `json:"likes"`
	RecentActors []string `json:"recent_actors"`
	Health       Health   `json:"health"`
}

const recentActorLimit = 3

// DatasetEngagement summarizes social counts and freshness signals.
func (s *Store) DatasetEngagement(ctx context.Context, d *entity.Dataset) Engagement {
	social := s.DatasetSocial(ctx, d.ID, "")
	now := s.now()

	out := Engagement{
		DatasetID:    d.ID,
		Followers:    social.Followers,
		Likes:        social.Likes,
		RecentActors: []string{},
	}

	if updated, err := entity.ParseTime(d.UpdatedAt); err == nil {
		hours := now.Sub(updated).Hours()
		out.Health.FreshnessHours = float64(int(max(hours, 0)*10)) / 10
	}

	seen := map[string]bool{}
	cutoff := now.Add(-30 * 24 * time.Hour)
	for _, e := range s.ListEvents(ctx, EventFilter{DatasetID: d.ID}) {
		if actor := e.Actor(); actor != "" && !seen[actor] && len(out.RecentActors) < recentActorLimit {
			seen[actor] = true
			out.RecentActors = append(out.RecentActors, actor)
		}
		if e.Type == entity.EventDatasetSchemaChanged {
			if at, err := entity.ParseTime(e.CreatedAt); err == nil && at.After(cutoff) {
				out.Health.SchemaChanges30d++
			}
		}
	}
	return out
}
