package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultOrgID = "org"
	DefaultRole  = "consumer"

	MaxTools     = 8
	MaxSelfTools = 5
)

type User struct {
	ID         string                      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name       string                      `json:"name" gorm:"type:varchar(128)" validate:"required,max=128"`
	Email      string                      `json:"email" gorm:"type:varchar(256)" validate:"max=256"`
	AvatarURL  string                      `json:"avatar_url" gorm:"type:varchar(1024)" validate:"max=1024"`
	JobTitle   string                      `json:"job_title" gorm:"type:varchar(128)" validate:"max=128"`
	Company    string                      `json:"company" gorm:"type:varchar(128)" validate:"max=128"`
	Subsidiary string                      `json:"subsidiary" gorm:"type:varchar(128)" validate:"max=128"`
	Tools      datatypes.JSONSlice[string] `json:"tools" validate:"max=8,dive,max=64"`
	OrgID      string                      `json:"org_id" gorm:"type:varchar(128)" validate:"required,max=128"`
	Role       string                      `json:"role" gorm:"type:varchar(64)" validate:"required,max=64"`
	CreatedAt  string                      `json:"created_at" gorm:"type:varchar(32)"`
}

type UserCreate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	AvatarURL  string   `json:"avatar_url"`
	JobTitle   string   `json:"job_title"`
	Company    string   `json:"company"`
	Subsidiary string   `json:"subsidiary"`
	Tools      []string `json:"tools"`
	OrgID      string   `json:"org_id"`
	Role       string   `json:"role"`
}

type UserPatch struct {
	Name       *string   `json:"name"`
	Email      *string   `json:"email"`
	AvatarURL  *string   `json:"avatar_url"`
	JobTitle   *string   `json:"job_title"`
	Company    *string   `json:"company"`
	Subsidiary *string   `json:"subsidiary"`
	Tools      *[]string `json:"tools"`
	Role       *string   `json:"role"`
}

func NewUser(req UserCreate, now time.Time) (*User, error) {
	u := &User{
		ID:         req.ID,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		AvatarURL:  req.AvatarURL,
		JobTitle:   req.JobTitle,
		Company:    req.Company,
		Subsidiary: req.Subsidiary,
		Tools:      normalizeTools(req.Tools, MaxTools),
		OrgID:      req.OrgID,
		Role:       req.Role,
		CreatedAt:  FormatTime(now),
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.OrgID == "" {
		u.OrgID = DefaultOrgID
	}
	if u.Role == "" {
		u.Role = DefaultRole
	}
	if err := Validate(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Apply applies the non-nil fields of p, truncating strings to their caps and
// tools to toolCap entries.
func (u *User) Apply(p UserPatch, toolCap int) error {
	next := u.Clone()
	if p.Name != nil {
		next.Name = truncate(strings.TrimSpace(*p.Name), 128)
	}
	if p.Email != nil {
		next.Email = truncate(strings.TrimSpace(*p.Email), 256)
	}
	if p.AvatarURL != nil {
		next.AvatarURL = truncate(*p.AvatarURL, 1024)
	}
	if p.JobTitle != nil {
		next.JobTitle = truncate(*p.JobTitle, 128)
	}
	if p.Company != nil {
		next.Company = truncate(*p.Company, 128)
	}
	if p.Subsidiary != nil {
		next.Subsidiary = truncate(*p.Subsidiary, 128)
	}
	if p.Tools != nil {
		next.Tools = normalizeTools(*p.Tools, toolCap)
	}
	if p.Role != nil && *p.Role != "" {
		next.Role = truncate(*p.Role, 64)
	}
	if err := Validate(next); err != nil {
		return err
	}
	*u = *next
	return nil
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Tools = cloneStrings(u.Tools)
	return &c
}

// DemoUser is the profile served for the hardcoded identity until it is edited.
func DemoUser(now time.Time) *User {
	return &User{
		ID:        DemoUserID,
		Name:      "Axel Richier",
		Email:     "demo@example.com",
		JobTitle:  "Solutions Architect",
		Company:   "Databricks",
		Tools:     datatypes.JSONSlice[string]{"databricks"},
		OrgID:     DefaultOrgID,
		Role:      DefaultRole,
		CreatedAt: FormatTime(now),
	}
}

// SyntheticUser stands in for an id that no store knows about.
func SyntheticUser(id string, now time.Time) *User {
	return &User{
		ID:        id,
		Name:      "User " + id,
		Tools:     datatypes.JSONSlice[string]{},
		OrgID:     DefaultOrgID,
		Role:      DefaultRole,
		CreatedAt: FormatTime(now),
	}
}

// tools are a set; duplicates collapse and order of first appearance is kept.
func normalizeTools(tools []string, limit int) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(tools))
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}
