package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"github.com/smallbiznis/buildledger/internal/observability/tracing"
	"github.com/smallbiznis/buildledger/internal/sequence/domain"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxOwnedTxAttempts = 3

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Clock   clock.Clock   `optional:"true"`
	Metrics *metrics.Core `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Core
}

func New(p Params) domain.Allocator {
	return newService(p)
}

func newService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("sequence.service"),
		repo:    p.Repo,
		clock:   c,
		metrics: p.Metrics,
	}
}

func (s *Service) Next(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.ErrInvalidName
	}

	ctx, span := tracing.StartSpan(ctx, "sequence.next", attribute.String("sequence.name", name))
	defer span.End()

	var (
		value int64
		err   error
	)
	if tx != nil {
		value, err = s.allocate(ctx, tx, name)
	} else {
		value, err = s.allocateOwned(ctx, name)
	}

	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "allocation failed")
		s.metrics.RecordSequenceAllocation(counterFamily(name), metrics.OutcomeFailure)
		s.log.Error("sequence allocation failed", zap.String("sequence", name), zap.Error(err))
		return 0, fmt.Errorf("allocate %s: %w", name, err)
	}

	span.SetAttributes(attribute.Int64("sequence.value", value))
	s.metrics.RecordSequenceAllocation(counterFamily(name), metrics.OutcomeSuccess)
	return value, nil
}

// Peek reports the value the next allocation would return without consuming it.
func (s *Service) Peek(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, domain.ErrInvalidName
	}
	seq, err := s.repo.Find(ctx, s.db, name)
	if err != nil {
		return 0, err
	}
	if seq == nil {
		return 1, nil
	}
	return seq.NextValue, nil
}

func (s *Service) allocateOwned(ctx context.Context, name string) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= maxOwnedTxAttempts; attempt++ {
		var value int64
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			v, err := s.allocate(ctx, tx, name)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !dbpkg.IsRetryableTxErr(err) && !errors.Is(err, domain.ErrConcurrentAdvance) {
			return 0, err
		}
		s.log.Warn("retrying sequence allocation",
			zap.String("sequence", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return 0, lastErr
}

// allocate runs inside tx. The row is created lazily with next_value 2 so the
// first caller receives 1.
func (s *Service) allocate(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	now := s.clock.Now()

	current, err := s.repo.FindForUpdate(ctx, tx, name)
	if err != nil {
		return 0, err
	}

	if current == nil {
		created, err := s.repo.InsertIfAbsent(ctx, tx, &domain.Sequence{
			Name:      name,
			NextValue: 2,
			UpdatedAt: now,
		})
		if err != nil {
			return 0, err
		}
		if created {
			return 1, nil
		}

		// Lost the insert race; the winner's row is now visible.
		current, err = s.repo.FindForUpdate(ctx, tx, name)
		if err != nil {
			return 0, err
		}
		if current == nil {
			return 0, domain.ErrSequenceNotCreated
		}
	}

	value := current.NextValue
	rows, err := s.repo.Advance(ctx, tx, name, value, value+1, now)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, domain.ErrConcurrentAdvance
	}
	return value, nil
}

// counterFamily drops the per-year suffix so metric labels stay bounded.
func counterFamily(name string) string {
	if idx := strings.IndexByte(name, ':'); idx > 0 {
		return name[:idx]
	}
	return name
}
