package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/buildledger/internal/cache"
	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/featureflag/domain"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock              `optional:"true"`
	Core    *config.CoreConfigHolder `optional:"true"`
	Metrics *metrics.Core            `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	core    *config.CoreConfigHolder
	metrics *metrics.Core

	// A nil entry records that the key has no flag.
	flags cache.Cache[string, *domain.FeatureFlag]
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("featureflag.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   c,
		core:    p.Core,
		metrics: p.Metrics,
		flags:   cache.NewTTLCache[string, *domain.FeatureFlag](cache.WithClock(c)),
	}
}

// IsFeatureEnabled never fails: unknown flags and store errors both read as off.
// key is slugged before lookup and percentage rollouts hash the slugged key,
// not the caller's spelling of it.
func (s *Service) IsFeatureEnabled(ctx context.Context, key string, ec domain.EvalContext) bool {
	key = normalizeKey(key)
	if key == "" {
		return false
	}

	flag, err := s.load(ctx, key)
	if err != nil {
		s.log.Error("feature flag lookup failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordFlagEvaluation(key, false)
		return false
	}

	enabled := domain.Evaluate(flag, ec)
	s.metrics.RecordFlagEvaluation(key, enabled)
	return enabled
}

func (s *Service) load(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	if flag, ok := s.flags.Get(key); ok {
		return flag, nil
	}

	flag, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	s.flags.Set(key, flag, s.core.Get().FeatureFlags.CacheTTL)
	return flag, nil
}

func (s *Service) UpsertFlag(ctx context.Context, req domain.UpsertRequest) (*domain.FeatureFlag, error) {
	key := normalizeKey(req.Key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}

	strategy, err := normalizeStrategy(req.RolloutStrategy)
	if err != nil {
		return nil, err
	}

	if req.Percentage != nil && (*req.Percentage < 0 || *req.Percentage > 100) {
		return nil, domain.ErrInvalidPercentage
	}
	if strategy == domain.StrategyPercentage && req.Percentage == nil {
		return nil, domain.ErrInvalidPercentage
	}

	var description *string
	if req.Description != nil {
		if trimmed := strings.TrimSpace(*req.Description); trimmed != "" {
			description = &trimmed
		}
	}

	roles := make(datatypes.JSONSlice[string], 0, len(req.AudienceRoles))
	for _, role := range req.AudienceRoles {
		if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
			roles = append(roles, role)
		}
	}

	now := s.clock.Now()
	record := &domain.FeatureFlag{
		ID:              s.genID.Generate(),
		Key:             key,
		Description:     description,
		Enabled:         req.Enabled,
		RolloutStrategy: strategy,
		Percentage:      req.Percentage,
		AudienceRoles:   roles,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.flags.Delete(key)

	s.log.Info("feature flag saved",
		zap.String("key", key),
		zap.Bool("enabled", record.Enabled),
		zap.String("strategy", string(strategy)),
	)

	// The stored row keeps its original id and created_at on update.
	saved, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return record, nil
	}
	return saved, nil
}

func (s *Service) GetFlag(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	key = normalizeKey(key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}

	flag, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, domain.ErrNotFound
	}
	return flag, nil
}

func (s *Service) ListFlags(ctx context.Context) ([]domain.FeatureFlag, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.FeatureFlag{}
	}
	return items, nil
}

func (s *Service) DeleteFlag(ctx context.Context, key string) error {
	key = normalizeKey(key)
	if key == "" {
		return domain.ErrInvalidKey
	}

	rows, err := s.repo.Delete(ctx, s.db, key)
	if err != nil {
		return err
	}
	s.flags.Delete(key)
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func normalizeKey(key string) string {
	return slug.Make(strings.TrimSpace(key))
}

func normalizeStrategy(value domain.RolloutStrategy) (domain.RolloutStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(string(value))) {
	case "", string(domain.StrategyBoolean):
		return domain.StrategyBoolean, nil
	case string(domain.StrategyPercentage):
		return domain.StrategyPercentage, nil
	case string(domain.StrategyRole):
		return domain.StrategyRole, nil
	default:
		return "", domain.ErrInvalidStrategy
	}
}

