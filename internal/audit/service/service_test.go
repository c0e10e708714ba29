package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/audit/repository"
	"github.com/smallbiznis/buildledger/internal/clock"
	obscontext "github.com/smallbiznis/buildledger/internal/observability/context"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.SecurityEvent{}))

	fake := clock.NewFakeClock(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: mustNode(t),
		Repo:  repository.Provide(),
		Clock: fake,
	}).(*Service)
	return svc, fake
}

func TestLogSecurityEventEnrichesFromContext(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "42", "estimator")
	ctx = obscontext.WithClient(ctx, "10.0.0.1", "curl/8")

	err := svc.LogSecurityEvent(ctx, auditdomain.Event{
		Action:       "policy.denied:invoice.delete",
		Outcome:      auditdomain.OutcomeDenied,
		ResourceType: "invoice",
		ResourceID:   "7",
		Metadata:     map[string]any{"reason": "No matching allow rule", "session_token": "abcdefgh"},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListRequest{Action: "policy.denied:invoice.delete"})
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)

	event := resp.Events[0]
	assert.Equal(t, auditdomain.OutcomeDenied, event.Outcome)
	require.NotNil(t, event.ActorID)
	assert.Equal(t, "42", *event.ActorID)
	require.NotNil(t, event.ActorRole)
	assert.Equal(t, "estimator", *event.ActorRole)
	require.NotNil(t, event.RequestID)
	assert.Equal(t, "req-1", *event.RequestID)
	require.NotNil(t, event.IPAddress)
	assert.Equal(t, "10.0.0.1", *event.IPAddress)
	assert.Equal(t, "No matching allow rule", event.Metadata["reason"])
	assert.Equal(t, "****efgh", event.Metadata["session_token"])
}

func TestLogSecurityEventRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.LogSecurityEvent(context.Background(), auditdomain.Event{Action: " "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.LogSecurityEvent(ctx, auditdomain.Event{Action: "sales_rep.assigned"}))
		fake.Advance(time.Second)
	}

	first, err := svc.List(ctx, auditdomain.ListRequest{Action: "sales_rep.assigned", Pagination: paginationOf("", 2)})
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextPageToken)
	assert.True(t, first.Events[0].CreatedAt.After(first.Events[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListRequest{Action: "sales_rep.assigned", Pagination: paginationOf(first.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	assert.True(t, second.Events[0].CreatedAt.Before(first.Events[1].CreatedAt))

	third, err := svc.List(ctx, auditdomain.ListRequest{Action: "sales_rep.assigned", Pagination: paginationOf(second.NextPageToken, 2)})
	require.NoError(t, err)
	require.Len(t, third.Events, 1)
	assert.False(t, third.HasMore)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListRequest{Pagination: paginationOf("not-a-token", 10)})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
