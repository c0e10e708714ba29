package repository

import (
	"context"

	"github.com/smallbiznis/buildledger/internal/featureflag/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, flag_key, description, enabled, rollout_strategy, percentage, audience_roles, created_at, updated_at`

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key string) (*domain.FeatureFlag, error) {
	var flag domain.FeatureFlag
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM feature_flags WHERE flag_key = ?`,
		key,
	).Scan(&flag).Error
	if err != nil {
		return nil, err
	}
	if flag.ID == 0 {
		return nil, nil
	}
	return &flag, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.FeatureFlag, error) {
	var items []domain.FeatureFlag
	err := db.WithContext(ctx).Raw(
		`SELECT ` + selectColumns + ` FROM feature_flags ORDER BY flag_key ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts the flag or, when the key exists, overwrites everything but
// id and created_at.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, flag *domain.FeatureFlag) error {
	if flag == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "flag_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"description", "enabled", "rollout_strategy", "percentage", "audience_roles", "updated_at",
			}),
		}).
		Create(flag).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM feature_flags WHERE flag_key = ?`, key)
	return result.RowsAffected, result.Error
}
