package domain

import (
	"context"
	"errors"
)

type Service interface {
	IsFeatureEnabled(ctx context.Context, key string, ec EvalContext) bool
	UpsertFlag(ctx context.Context, req UpsertRequest) (*FeatureFlag, error)
	GetFlag(ctx context.Context, key string) (*FeatureFlag, error)
	ListFlags(ctx context.Context) ([]FeatureFlag, error)
	DeleteFlag(ctx context.Context, key string) error
}

type UpsertRequest struct {
	Key             string          `json:"key"`
	Description     *string         `json:"description"`
	Enabled         bool            `json:"enabled"`
	RolloutStrategy RolloutStrategy `json:"rollout_strategy"`
	Percentage      *int            `json:"percentage"`
	AudienceRoles   []string        `json:"audience_roles"`
}

var (
	ErrInvalidKey        = errors.New("invalid_key")
	ErrInvalidStrategy   = errors.New("invalid_rollout_strategy")
	ErrInvalidPercentage = errors.New("invalid_percentage")
	ErrNotFound          = errors.New("not_found")
)
