package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"github.com/smallbiznis/buildledger/internal/observability/tracing"
	"github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	assignmentLockKey = "salesrep:assignment"
	lockPollInterval  = 50 * time.Millisecond

	modeAuto   = "auto"
	modeManual = "manual"
	modeClear  = "unassign"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Clock   clock.Clock              `optional:"true"`
	Core    *config.CoreConfigHolder `optional:"true"`
	Locker  domain.Locker            `optional:"true"`
	Audit   auditdomain.Dispatcher   `optional:"true"`
	Metrics *metrics.Core            `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	core    *config.CoreConfigHolder
	locker  domain.Locker
	audit   auditdomain.Dispatcher
	metrics *metrics.Core
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("salesrep.service"),
		repo:    p.Repo,
		clock:   c,
		core:    p.Core,
		locker:  p.Locker,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) GetSalesRepWorkloads(ctx context.Context) ([]domain.Workload, error) {
	users, err := s.repo.ListSalesReps(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []domain.Workload{}, nil
	}

	ids := make([]snowflake.ID, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	counts, err := s.repo.CountActiveProjects(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	return domain.BuildWorkloads(users, counts, s.core.Get().Assignment.DefaultCapacity), nil
}

func (s *Service) AutoAssignSalesRep(ctx context.Context, projectID snowflake.ID) *domain.SalesRep {
	ctx, span := tracing.StartSpan(ctx, "salesrep.auto_assign", attribute.Int64("project.id", projectID.Int64()))
	defer span.End()

	log := s.log.With(zap.String("project_id", projectID.String()))
	if projectID == 0 {
		log.Warn("auto assignment skipped: invalid project id")
		s.metrics.RecordAssignment(modeAuto, metrics.OutcomeSkipped)
		return nil
	}

	release := s.acquireAssignmentLock(ctx)
	defer release()

	workloads, err := s.GetSalesRepWorkloads(ctx)
	if err != nil {
		log.Error("auto assignment failed: workloads unavailable", zap.Error(err))
		s.metrics.RecordAssignment(modeAuto, metrics.OutcomeFailure)
		return nil
	}

	chosen, ok := domain.SelectRep(workloads)
	if !ok {
		log.Warn("no active sales representatives available; project left unassigned")
		s.metrics.RecordAssignment(modeAuto, metrics.OutcomeSkipped)
		return nil
	}
	if chosen.UtilizationPercentage >= 100 {
		log.Warn("all sales representatives at capacity; assigning least loaded",
			zap.String("sales_rep_id", chosen.UserID.String()),
			zap.Int("utilization", chosen.UtilizationPercentage),
		)
	}

	now := s.clock.Now()
	rows, err := s.repo.UpdateAssignment(ctx, s.db, projectID, &chosen.UserID, &now)
	if err != nil {
		log.Error("auto assignment failed: update rejected", zap.Error(err))
		s.metrics.RecordAssignment(modeAuto, metrics.OutcomeFailure)
		return nil
	}
	if rows == 0 {
		log.Warn("auto assignment skipped: project not found")
		s.metrics.RecordAssignment(modeAuto, metrics.OutcomeSkipped)
		return nil
	}

	span.SetAttributes(attribute.Int64("sales_rep.id", chosen.UserID.Int64()))
	s.metrics.RecordAssignment(modeAuto, metrics.OutcomeSuccess)
	s.emit(ctx, "sales_rep.assigned", projectID, map[string]any{
		"mode":         modeAuto,
		"sales_rep_id": chosen.UserID.String(),
		"utilization":  chosen.UtilizationPercentage,
	})
	log.Info("sales representative assigned",
		zap.String("sales_rep_id", chosen.UserID.String()),
		zap.Int("utilization", chosen.UtilizationPercentage),
	)

	return &domain.SalesRep{ID: chosen.UserID, Name: chosen.Name, Email: chosen.Email}
}

func (s *Service) AssignSalesRep(ctx context.Context, projectID, repID snowflake.ID) (bool, error) {
	if projectID == 0 {
		return false, domain.ErrInvalidProjectID
	}
	if repID == 0 {
		return false, domain.ErrInvalidRepID
	}

	log := s.log.With(zap.String("project_id", projectID.String()), zap.String("sales_rep_id", repID.String()))

	user, err := s.repo.FindUser(ctx, s.db, repID)
	if err != nil {
		s.metrics.RecordAssignment(modeManual, metrics.OutcomeFailure)
		return false, err
	}
	if user == nil || !user.IsActive || !user.IsSalesRep {
		log.Info("manual assignment rejected: target is not an active sales representative")
		s.metrics.RecordAssignment(modeManual, metrics.OutcomeSkipped)
		return false, nil
	}

	now := s.clock.Now()
	rows, err := s.repo.UpdateAssignment(ctx, s.db, projectID, &repID, &now)
	if err != nil {
		s.metrics.RecordAssignment(modeManual, metrics.OutcomeFailure)
		return false, err
	}
	if rows == 0 {
		log.Info("manual assignment rejected: project not found")
		s.metrics.RecordAssignment(modeManual, metrics.OutcomeSkipped)
		return false, nil
	}

	s.metrics.RecordAssignment(modeManual, metrics.OutcomeSuccess)
	s.emit(ctx, "sales_rep.assigned", projectID, map[string]any{
		"mode":         modeManual,
		"sales_rep_id": repID.String(),
	})
	return true, nil
}

func (s *Service) UnassignSalesRep(ctx context.Context, projectID snowflake.ID) (bool, error) {
	if projectID == 0 {
		return false, domain.ErrInvalidProjectID
	}

	rows, err := s.repo.UpdateAssignment(ctx, s.db, projectID, nil, nil)
	if err != nil {
		s.metrics.RecordAssignment(modeClear, metrics.OutcomeFailure)
		return false, err
	}
	if rows == 0 {
		s.metrics.RecordAssignment(modeClear, metrics.OutcomeSkipped)
		return false, nil
	}

	s.metrics.RecordAssignment(modeClear, metrics.OutcomeSuccess)
	s.emit(ctx, "sales_rep.unassigned", projectID, nil)
	return true, nil
}

func (s *Service) GetAssignment(ctx context.Context, projectID snowflake.ID) (*domain.SalesRep, error) {
	if projectID == 0 {
		return nil, domain.ErrInvalidProjectID
	}

	project, err := s.repo.FindProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, domain.ErrProjectNotFound
	}
	if project.AssignedSalesRepID == nil {
		return nil, nil
	}

	user, err := s.repo.FindUser(ctx, s.db, *project.AssignedSalesRepID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &domain.SalesRep{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// acquireAssignmentLock waits up to the configured TTL for the cross-process
// lock. Without a locker, or when the wait runs out, assignment continues unlocked.
func (s *Service) acquireAssignmentLock(ctx context.Context) func() {
	noop := func() {}
	if s.locker == nil {
		return noop
	}

	ttl := s.core.Get().Assignment.LockTTL
	waitCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		token, ok, err := s.locker.TryLock(waitCtx, assignmentLockKey, ttl)
		if err != nil {
			s.log.Warn("assignment lock unavailable; proceeding unlocked", zap.Error(err))
			return noop
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.locker.Release(releaseCtx, assignmentLockKey, token); err != nil {
					s.log.Warn("assignment lock release failed", zap.Error(err))
				}
			}
		}

		select {
		case <-waitCtx.Done():
			s.log.Warn("assignment lock wait timed out; proceeding unlocked", zap.Duration("ttl", ttl))
			return noop
		case <-ticker.C:
		}
	}
}

func (s *Service) emit(ctx context.Context, action string, projectID snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Dispatch(ctx, auditdomain.Event{
		Action:       action,
		Outcome:      auditdomain.OutcomeSuccess,
		ResourceType: "project",
		ResourceID:   projectID.String(),
		Metadata:     metadata,
	})
}
