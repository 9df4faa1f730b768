package entity

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PlatformType string

const (
	PlatformSnowflake  PlatformType = "snowflake"
	PlatformDatabricks PlatformType = "databricks"
	PlatformBigQuery   PlatformType = "bigquery"
	PlatformRedshift   PlatformType = "redshift"
)

var Platforms = []PlatformType{PlatformSnowflake, PlatformDatabricks, PlatformBigQuery, PlatformRedshift}

type PlatformProfile struct {
	ID           string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID       string            `json:"user_id" gorm:"type:varchar(128);not null" validate:"required,max=128"`
	PlatformType PlatformType      `json:"platform_type" gorm:"type:varchar(32)" validate:"required,oneof=snowflake databricks bigquery redshift"`
	ConfigJSON   datatypes.JSONMap `json:"config_json"`
}

func NewPlatformProfile(userID string, platform PlatformType, config map[string]any) (*PlatformProfile, error) {
	p := &PlatformProfile{
		ID:           uuid.NewString(),
		UserID:       userID,
		PlatformType: platform,
		ConfigJSON:   datatypes.JSONMap(cloneMap(config)),
	}
	if p.ConfigJSON == nil {
		p.ConfigJSON = datatypes.JSONMap{}
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPlatformProfile is served to users who never saved one.
func DefaultPlatformProfile(userID string) *PlatformProfile {
	return &PlatformProfile{
		ID:           "default",
		UserID:       userID,
		PlatformType: PlatformSnowflake,
		ConfigJSON:   datatypes.JSONMap{"database": "ANALYTICS", "schema": "PUBLIC"},
	}
}

func (p *PlatformProfile) Clone() *PlatformProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.ConfigJSON = datatypes.JSONMap(cloneMap(p.ConfigJSON))
	return &c
}
