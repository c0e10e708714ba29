package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AtomicStrategy issues values from the locked counter table.
type AtomicStrategy struct {
	allocator domain.Allocator
}

func NewAtomicStrategy(allocator domain.Allocator) *AtomicStrategy {
	return &AtomicStrategy{allocator: allocator}
}

func (s *AtomicStrategy) Next(ctx context.Context, tx *gorm.DB, req domain.Request) (int64, error) {
	return s.allocator.Next(ctx, tx, req.Name)
}

// CountStrategy derives the next value from the number of identifiers already
// stored under the prefix. Two concurrent callers can receive the same value,
// so it is only wired for single-threaded test and development runs.
type CountStrategy struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewCountStrategy(db *gorm.DB, repo domain.Repository) *CountStrategy {
	return &CountStrategy{db: db, repo: repo}
}

func (s *CountStrategy) Next(ctx context.Context, tx *gorm.DB, req domain.Request) (int64, error) {
	if strings.TrimSpace(req.Table) == "" || strings.TrimSpace(req.Column) == "" || req.Prefix == "" {
		return 0, domain.ErrInvalidRequest
	}
	conn := tx
	if conn == nil {
		conn = s.db
	}
	count, err := s.repo.CountByPrefix(ctx, conn, req.Table, req.Column, req.Prefix)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

type StrategyParams struct {
	fx.In

	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Allocator domain.Allocator
}

// NewStrategy selects the numbering strategy from NUMBERING_MODE.
func NewStrategy(p StrategyParams) domain.Strategy {
	if p.Config.NumberingMode == config.NumberingModeCount {
		p.Log.Named("sequence.strategy").Warn("count-based numbering enabled; identifiers are not safe under concurrent writers")
		return NewCountStrategy(p.DB, p.Repo)
	}
	return NewAtomicStrategy(p.Allocator)
}
