package policy

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"github.com/smallbiznis/buildledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []auditdomain.Event
	panics bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event auditdomain.Event) bool {
	if d.panics {
		panic("queue gone")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return true
}

func TestAuthorizeRecordsDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	core, err := metrics.NewCore(reg)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	authz := NewAuthorizer(Params{
		Log:     zaptest.NewLogger(t),
		Engine:  newDefaultEngine(t),
		Audit:   dispatcher,
		Metrics: core,
	})

	decision := authz.Authorize(context.Background(), Context{
		Action:   ActionInvoiceSend,
		User:     user("u1", RoleViewer),
		Resource: &Resource{Type: ObjectInvoice, ID: "9"},
		Request:  Request{ID: "req-1", Method: "POST", Path: "/v1/invoices/9/send"},
	})
	assert.False(t, decision.Allow)

	decision = authz.Authorize(context.Background(), Context{
		Action: ActionInvoiceSend,
		User:   user("u2", RoleAccountant),
	})
	assert.True(t, decision.Allow)

	require.Len(t, dispatcher.events, 2)
	denied := dispatcher.events[0]
	assert.Equal(t, "policy.denied:invoice.send", denied.Action)
	assert.Equal(t, auditdomain.OutcomeDenied, denied.Outcome)
	assert.Equal(t, "u1", denied.ActorID)
	assert.Equal(t, ObjectInvoice, denied.ResourceType)
	assert.Equal(t, "9", denied.ResourceID)
	assert.Equal(t, "req-1", denied.RequestID)
	assert.Equal(t, ReasonNoMatch, denied.Metadata["reason"])

	allowed := dispatcher.events[1]
	assert.Equal(t, "policy.allowed:invoice.send", allowed.Action)
	assert.Equal(t, auditdomain.OutcomeAllowed, allowed.Outcome)
	assert.Equal(t, RuleRoleMatrix, allowed.Metadata["rule_id"])

	expected := `
# HELP policy_decisions_total Authorization decisions by action, role and outcome.
# TYPE policy_decisions_total counter
policy_decisions_total{action="invoice.send",outcome="allowed",role="accountant"} 1
policy_decisions_total{action="invoice.send",outcome="denied",role="viewer"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "policy_decisions_total"))
}

func TestAuthorizeSurvivesRecordingFailure(t *testing.T) {
	authz := NewAuthorizer(Params{
		Log:    zaptest.NewLogger(t),
		Engine: newDefaultEngine(t),
		Audit:  &recordingDispatcher{panics: true},
	})

	decision := authz.Authorize(context.Background(), Context{Action: ActionQuoteCreate, User: user("u1", RoleEstimator)})
	assert.True(t, decision.Allow)
}

func TestNewEnforcerPersistsSeededMatrix(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	ok, err := enforcer.Enforce(RoleSubject(RoleProjectManager), ObjectQuote, ActionQuoteCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	// Seeding again over the same table must not fail on existing rows.
	again, err := NewEnforcer(conn)
	require.NoError(t, err)
	ok, err = again.Enforce(RoleSubject(RoleViewer), ObjectInvoice, ActionInvoiceSend)
	require.NoError(t, err)
	assert.False(t, ok)
}
