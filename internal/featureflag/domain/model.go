package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type RolloutStrategy string

const (
	StrategyBoolean    RolloutStrategy = "boolean"
	StrategyPercentage RolloutStrategy = "percentage"
	StrategyRole       RolloutStrategy = "role"
)

type FeatureFlag struct {
	ID              snowflake.ID                `gorm:"primaryKey" json:"id"`
	Key             string                      `gorm:"column:flag_key;type:varchar(128);not null;uniqueIndex" json:"key"`
	Description     *string                     `gorm:"type:text" json:"description,omitempty"`
	Enabled         bool                        `gorm:"not null" json:"enabled"`
	RolloutStrategy RolloutStrategy             `gorm:"column:rollout_strategy;type:varchar(32);not null" json:"rollout_strategy"`
	Percentage      *int                        `json:"percentage,omitempty"`
	AudienceRoles   datatypes.JSONSlice[string] `gorm:"column:audience_roles;type:json" json:"audience_roles"`
	CreatedAt       time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null" json:"updated_at"`
}

func (FeatureFlag) TableName() string { return "feature_flags" }

// EvalContext identifies the caller a flag is evaluated for.
type EvalContext struct {
	UserID   string `form:"user_id" json:"user_id"`
	UserRole string `form:"user_role" json:"user_role"`
}
