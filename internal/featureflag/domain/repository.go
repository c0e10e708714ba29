package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*FeatureFlag, error)
	List(ctx context.Context, db *gorm.DB) ([]FeatureFlag, error)
	Upsert(ctx context.Context, db *gorm.DB, flag *FeatureFlag) error
	Delete(ctx context.Context, db *gorm.DB, key string) (int64, error)
}
