package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/clock"
	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"github.com/smallbiznis/buildledger/internal/salesrep/repository"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var assignNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu     sync.Mutex
	events []auditdomain.Event
}

func (r *recordingAudit) Dispatch(_ context.Context, event auditdomain.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

type stubLocker struct {
	mu       sync.Mutex
	acquire  bool
	err      error
	tries    int
	released []string
}

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tries++
	if l.err != nil {
		return "", false, l.err
	}
	if !l.acquire {
		return "", false, nil
	}
	return "token-" + key, true, nil
}

func (l *stubLocker) Release(_ context.Context, _ string, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, token)
	return nil
}

type failingRepo struct {
	domain.Repository
}

func (failingRepo) ListSalesReps(context.Context, *gorm.DB) ([]domain.User, error) {
	return nil, errors.New("connection reset")
}

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	audit *recordingAudit
}

func setup(t *testing.T, opts ...func(*Params)) fixture {
	t.Helper()
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Project{}))

	audit := &recordingAudit{}
	p := Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(assignNow),
		Audit: audit,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return fixture{db: db, svc: New(p), audit: audit}
}

func (f fixture) addRep(t *testing.T, id snowflake.ID, name string, capacity *int) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.User{
		ID:            id,
		Name:          name,
		Email:         name + "@example.com",
		IsActive:      true,
		IsSalesRep:    true,
		SalesCapacity: capacity,
	}).Error)
}

func (f fixture) addProjects(t *testing.T, firstID snowflake.ID, n int, rep *snowflake.ID, status domain.ProjectStatus) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.db.Create(&domain.Project{
			ID:                 firstID + snowflake.ID(i),
			Status:             status,
			AssignedSalesRepID: rep,
		}).Error)
	}
}

func idPtr(id snowflake.ID) *snowflake.ID { return &id }

func TestAutoAssignPicksLeastLoadedAndUpdatesWorkload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addRep(t, 1, "a", nil)
	f.addRep(t, 2, "b", nil)
	f.addProjects(t, 100, 3, idPtr(1), domain.ProjectStatusInProgress)
	f.addProjects(t, 200, 8, idPtr(2), domain.ProjectStatusQuoted)
	f.addProjects(t, 300, 4, idPtr(1), domain.ProjectStatusCompleted)
	f.addProjects(t, 400, 1, nil, domain.ProjectStatusInquiry)

	before, err := f.svc.GetSalesRepWorkloads(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, snowflake.ID(1), before[0].UserID)
	assert.Equal(t, 30, before[0].UtilizationPercentage)
	assert.Equal(t, 80, before[1].UtilizationPercentage)

	rep := f.svc.AutoAssignSalesRep(ctx, 400)
	require.NotNil(t, rep)
	assert.Equal(t, snowflake.ID(1), rep.ID)

	after, err := f.svc.GetSalesRepWorkloads(ctx)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1), after[0].UserID)
	assert.Equal(t, int64(4), after[0].ActiveProjectCount)
	assert.Equal(t, 40, after[0].UtilizationPercentage)

	var project domain.Project
	require.NoError(t, f.db.First(&project, 400).Error)
	require.NotNil(t, project.AssignedAt)
	assert.True(t, project.AssignedAt.Equal(assignNow))

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "sales_rep.assigned", f.audit.events[0].Action)
	assert.Equal(t, "400", f.audit.events[0].ResourceID)
}

func TestAutoAssignWhenEveryoneSaturatedPicksLeastLoaded(t *testing.T) {
	f := setup(t)
	one := 1
	f.addRep(t, 1, "a", &one)
	f.addRep(t, 2, "b", &one)
	f.addProjects(t, 100, 2, idPtr(1), domain.ProjectStatusApproved)
	f.addProjects(t, 200, 1, idPtr(2), domain.ProjectStatusApproved)
	f.addProjects(t, 300, 1, nil, domain.ProjectStatusInquiry)

	rep := f.svc.AutoAssignSalesRep(context.Background(), 300)
	require.NotNil(t, rep)
	assert.Equal(t, snowflake.ID(2), rep.ID)
}

func TestAutoAssignWithoutRepsReturnsNil(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Create(&domain.User{ID: 9, Name: "inactive", IsActive: false, IsSalesRep: true}).Error)
	require.NoError(t, f.db.Create(&domain.User{ID: 10, Name: "not-a-rep", IsActive: true, IsSalesRep: false}).Error)
	f.addProjects(t, 100, 1, nil, domain.ProjectStatusInquiry)

	assert.Nil(t, f.svc.AutoAssignSalesRep(context.Background(), 100))
	assert.Empty(t, f.audit.events)
}

func TestAutoAssignSwallowsStoreFailures(t *testing.T) {
	f := setup(t, func(p *Params) { p.Repo = failingRepo{Repository: p.Repo} })

	assert.NotPanics(t, func() {
		assert.Nil(t, f.svc.AutoAssignSalesRep(context.Background(), 100))
	})
}

func TestAutoAssignUnknownProjectReturnsNil(t *testing.T) {
	f := setup(t)
	f.addRep(t, 1, "a", nil)

	assert.Nil(t, f.svc.AutoAssignSalesRep(context.Background(), 999))
}

func TestAutoAssignHoldsLockAroundDecision(t *testing.T) {
	locker := &stubLocker{acquire: true}
	f := setup(t, func(p *Params) { p.Locker = locker })
	f.addRep(t, 1, "a", nil)
	f.addProjects(t, 100, 1, nil, domain.ProjectStatusInquiry)

	require.NotNil(t, f.svc.AutoAssignSalesRep(context.Background(), 100))
	assert.Equal(t, 1, locker.tries)
	assert.Equal(t, []string{"token-salesrep:assignment"}, locker.released)
}

func TestAutoAssignProceedsWhenLockNeverFrees(t *testing.T) {
	locker := &stubLocker{acquire: false}
	cfg := config.DefaultCoreConfig()
	cfg.Assignment.LockTTL = 120 * time.Millisecond
	f := setup(t, func(p *Params) {
		p.Locker = locker
		p.Core = config.NewStaticCoreConfigHolder(cfg)
	})
	f.addRep(t, 1, "a", nil)
	f.addProjects(t, 100, 1, nil, domain.ProjectStatusInquiry)

	require.NotNil(t, f.svc.AutoAssignSalesRep(context.Background(), 100))
	assert.GreaterOrEqual(t, locker.tries, 2)
	assert.Empty(t, locker.released)
}

func TestAssignSalesRepValidatesTarget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addRep(t, 1, "a", nil)
	require.NoError(t, f.db.Create(&domain.User{ID: 2, Name: "inactive", IsActive: false, IsSalesRep: true}).Error)
	require.NoError(t, f.db.Create(&domain.User{ID: 3, Name: "office", IsActive: true, IsSalesRep: false}).Error)
	f.addProjects(t, 100, 1, nil, domain.ProjectStatusInquiry)

	for _, repID := range []snowflake.ID{2, 3, 404} {
		ok, err := f.svc.AssignSalesRep(ctx, 100, repID)
		require.NoError(t, err)
		assert.False(t, ok, "rep %d", repID)
	}

	ok, err := f.svc.AssignSalesRep(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.AssignSalesRep(ctx, 100, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	rep, err := f.svc.GetAssignment(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "a", rep.Name)

	_, err = f.svc.AssignSalesRep(ctx, 0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidProjectID)
}

func TestUnassignSalesRep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addRep(t, 1, "a", nil)
	f.addProjects(t, 100, 1, idPtr(1), domain.ProjectStatusInquiry)

	ok, err := f.svc.UnassignSalesRep(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	rep, err := f.svc.GetAssignment(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, rep)

	ok, err = f.svc.UnassignSalesRep(ctx, 555)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.GetAssignment(ctx, 555)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
