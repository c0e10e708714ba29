package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/buildledger/internal/sequence/domain"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, seq *domain.Sequence) (bool, error) {
	if seq == nil {
		return false, gorm.ErrInvalidData
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(seq)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, name string) (*domain.Sequence, error) {
	query := `SELECT name, next_value, updated_at FROM sequences WHERE name = ?`
	// SQLite serialises writers on the database lock and rejects FOR UPDATE.
	if dbpkg.SupportsRowLocks(db) {
		query += ` FOR UPDATE`
	}
	return r.scan(ctx, db, query, name)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, name string) (*domain.Sequence, error) {
	return r.scan(ctx, db, `SELECT name, next_value, updated_at FROM sequences WHERE name = ?`, name)
}

func (r *repo) Advance(ctx context.Context, db *gorm.DB, name string, current, next int64, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sequences SET next_value = ?, updated_at = ? WHERE name = ? AND next_value = ?`,
		next,
		updatedAt,
		name,
		current,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) CountByPrefix(ctx context.Context, db *gorm.DB, table, column, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Table(table).
		Where(clause.Like{Column: clause.Column{Name: column}, Value: prefix + "%"}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) scan(ctx context.Context, db *gorm.DB, query, name string) (*domain.Sequence, error) {
	var seq domain.Sequence
	if err := db.WithContext(ctx).Raw(query, name).Scan(&seq).Error; err != nil {
		return nil, err
	}
	if seq.Name == "" {
		return nil, nil
	}
	return &seq, nil
}
