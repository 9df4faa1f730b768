package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
	VisibilityPrivate  Visibility = "private"
)

type SourceType string

const (
	SourceTypePostgres     SourceType = "postgres"
	SourceTypeSnowflake    SourceType = "snowflake"
	SourceTypeDatabricks   SourceType = "databricks"
	SourceTypeDatabricksUC SourceType = "databricks.uc"
	SourceTypeBigQuery     SourceType = "bigquery"
	SourceTypeRedshift     SourceType = "redshift"
	SourceTypeUnknown      SourceType = "unknown"
)

const (
	MaxTags      = 16
	MaxTagLength = 64
)

type Dataset struct {
	ID                 string                      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name               string                      `json:"name" gorm:"type:varchar(128);not null" validate:"required,max=128"`
	Description        string                      `json:"description" gorm:"type:text"`
	Tags               datatypes.JSONSlice[string] `json:"tags" validate:"max=16,dive,max=64"`
	OwnerID            string                      `json:"owner_id" gorm:"type:varchar(128)" validate:"required,max=128"`
	OrgID              string                      `json:"org_id" gorm:"type:varchar(128)" validate:"required,max=128"`
	Company            string                      `json:"company" gorm:"type:varchar(128)" validate:"max=128"`
	SourceType         SourceType                  `json:"source_type" gorm:"type:varchar(32)" validate:"required,oneof=postgres snowflake databricks databricks.uc bigquery redshift unknown"`
	SourceMetadataJSON datatypes.JSONMap           `json:"source_metadata_json"`
	Visibility         Visibility                  `json:"visibility" gorm:"type:varchar(16)" validate:"required,oneof=public internal private"`
	CreatedAt          string                      `json:"created_at" gorm:"type:varchar(32)"`
	UpdatedAt          string                      `json:"updated_at" gorm:"type:varchar(32)"`
}

type DatasetCreate struct {
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Tags               []string       `json:"tags"`
	OwnerID            string         `json:"owner_id"`
	OrgID              string         `json:"org_id"`
	Company            string         `json:"company"`
	SourceType         SourceType     `json:"source_type"`
	SourceMetadataJSON map[string]any `json:"source_metadata_json"`
	Visibility         Visibility     `json:"visibility"`
}

// DatasetPatch carries a partial update; nil fields are left untouched.
type DatasetPatch struct {
	Name               *string         `json:"name"`
	Description        *string         `json:"description"`
	Tags               *[]string       `json:"tags"`
	Visibility         *Visibility     `json:"visibility"`
	SourceMetadataJSON *map[string]any `json:"source_metadata_json"`
}

func NewDataset(req DatasetCreate, now time.Time) (*Dataset, error) {
	ts := FormatTime(now)
	d := &Dataset{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		Tags:               normalizeTags(req.Tags),
		OwnerID:            req.OwnerID,
		OrgID:              req.OrgID,
		Company:            req.Company,
		SourceType:         req.SourceType,
		SourceMetadataJSON: datatypes.JSONMap(cloneMap(req.SourceMetadataJSON)),
		Visibility:         req.Visibility,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if d.SourceMetadataJSON == nil {
		d.SourceMetadataJSON = datatypes.JSONMap{}
	}
	if d.Visibility == "" {
		d.Visibility = VisibilityPublic
	}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply applies the non-nil fields of p. On a validation failure d is left unchanged.
func (d *Dataset) Apply(p DatasetPatch, now time.Time) error {
	next := d.Clone()
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Tags != nil {
		next.Tags = normalizeTags(*p.Tags)
	}
	if p.Visibility != nil {
		next.Visibility = *p.Visibility
	}
	if p.SourceMetadataJSON != nil {
		next.SourceMetadataJSON = datatypes.JSONMap(cloneMap(*p.SourceMetadataJSON))
		if next.SourceMetadataJSON == nil {
			next.SourceMetadataJSON = datatypes.JSONMap{}
		}
	}
	if err := Validate(next); err != nil {
		return err
	}
	next.UpdatedAt = NextTimestamp(d.UpdatedAt, now)
	*d = *next
	return nil
}

func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = cloneStrings(d.Tags)
	c.SourceMetadataJSON = datatypes.JSONMap(cloneMap(d.SourceMetadataJSON))
	return &c
}

// HasTag reports whether the dataset carries tag, ignoring case.
func (d *Dataset) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Metadata returns a string value from the source metadata, or "".
func (d *Dataset) Metadata(key string) string {
	if v, ok := d.SourceMetadataJSON[key].(string); ok {
		return v
	}
	return ""
}

func normalizeTags(tags []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
