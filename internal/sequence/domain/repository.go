package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent creates the row and reports false when another writer created it first.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, seq *Sequence) (bool, error)
	FindForUpdate(ctx context.Context, db *gorm.DB, name string) (*Sequence, error)
	Find(ctx context.Context, db *gorm.DB, name string) (*Sequence, error)
	Advance(ctx context.Context, db *gorm.DB, name string, current, next int64, updatedAt time.Time) (int64, error)
	CountByPrefix(ctx context.Context, db *gorm.DB, table, column, prefix string) (int64, error)
}
