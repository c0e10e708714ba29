package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/buildledger/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestAndActorFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "42", "sales_rep")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "42", fields["actor_id"])
		assert.Equal(t, "sales_rep", fields["actor_role"])
		assert.NotContains(t, fields, "trace_id")
	}
}

func TestWithContextLeavesAnonymousRequestsUntagged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("hello")
	WithContext(obscontext.WithActor(context.Background(), " ", "viewer"), base).Info("blank actor")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Empty(t, entries[0].ContextMap())
		assert.Empty(t, entries[1].ContextMap())
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM sequences":                       "SELECT",
		"  update projects set assigned_at = ?":         "UPDATE",
		"WITH x AS (SELECT 1) DELETE FROM feature_flags": "SELECT",
		"PRAGMA busy_timeout = 5000":                    "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "console", normalizeFormat(" Console "))
	assert.Equal(t, "json", normalizeFormat("logfmt"))
}
