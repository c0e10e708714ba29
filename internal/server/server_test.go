package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/config"
	featureflagdomain "github.com/smallbiznis/buildledger/internal/featureflag/domain"
	identifierdomain "github.com/smallbiznis/buildledger/internal/identifier/domain"
	"github.com/smallbiznis/buildledger/internal/observability"
	"github.com/smallbiznis/buildledger/internal/policy"
	salesrepdomain "github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeSalesRepService struct {
	workloads  []salesrepdomain.Workload
	autoRep    *salesrepdomain.SalesRep
	assignOK   bool
	unassignOK bool
	lastRepID  snowflake.ID
}

func (f *fakeSalesRepService) GetSalesRepWorkloads(context.Context) ([]salesrepdomain.Workload, error) {
	return f.workloads, nil
}

func (f *fakeSalesRepService) AutoAssignSalesRep(context.Context, snowflake.ID) *salesrepdomain.SalesRep {
	return f.autoRep
}

func (f *fakeSalesRepService) AssignSalesRep(_ context.Context, _ snowflake.ID, repID snowflake.ID) (bool, error) {
	f.lastRepID = repID
	return f.assignOK, nil
}

func (f *fakeSalesRepService) UnassignSalesRep(context.Context, snowflake.ID) (bool, error) {
	return f.unassignOK, nil
}

func (f *fakeSalesRepService) GetAssignment(context.Context, snowflake.ID) (*salesrepdomain.SalesRep, error) {
	return nil, salesrepdomain.ErrProjectNotFound
}

type fakeGenerator struct {
	kinds []identifierdomain.Kind
}

func (f *fakeGenerator) GenerateInquiryNumber(context.Context, *gorm.DB) (string, error) {
	return "INQ-2026-000001", nil
}

func (f *fakeGenerator) GenerateQuoteNumber(context.Context, *gorm.DB) (string, error) {
	return "QTE-2026-000001", nil
}

func (f *fakeGenerator) GenerateInvoiceNumber(context.Context, *gorm.DB) (string, error) {
	return "", errors.New("sequence store down")
}

func (f *fakeGenerator) GenerateChangeOrderCode(context.Context, *gorm.DB) string {
	return "CO-000001"
}

func (f *fakeGenerator) Generate(ctx context.Context, tx *gorm.DB, kind identifierdomain.Kind) (string, error) {
	f.kinds = append(f.kinds, kind)
	switch kind {
	case identifierdomain.KindQuote:
		return f.GenerateQuoteNumber(ctx, tx)
	case identifierdomain.KindInvoice:
		return f.GenerateInvoiceNumber(ctx, tx)
	case identifierdomain.KindChangeOrder:
		return f.GenerateChangeOrderCode(ctx, tx), nil
	default:
		return f.GenerateInquiryNumber(ctx, tx)
	}
}

type fakeFlagService struct {
	lastEval   featureflagdomain.EvalContext
	lastUpsert featureflagdomain.UpsertRequest
	upsertErr  error
}

func (f *fakeFlagService) IsFeatureEnabled(_ context.Context, _ string, ec featureflagdomain.EvalContext) bool {
	f.lastEval = ec
	return ec.UserRole == policy.RoleEstimator
}

func (f *fakeFlagService) UpsertFlag(_ context.Context, req featureflagdomain.UpsertRequest) (*featureflagdomain.FeatureFlag, error) {
	f.lastUpsert = req
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &featureflagdomain.FeatureFlag{Key: req.Key, Enabled: req.Enabled, RolloutStrategy: req.RolloutStrategy}, nil
}

func (f *fakeFlagService) GetFlag(context.Context, string) (*featureflagdomain.FeatureFlag, error) {
	return nil, featureflagdomain.ErrNotFound
}

func (f *fakeFlagService) ListFlags(context.Context) ([]featureflagdomain.FeatureFlag, error) {
	return []featureflagdomain.FeatureFlag{}, nil
}

func (f *fakeFlagService) DeleteFlag(context.Context, string) error {
	return nil
}

type fakeAuditService struct {
	lastList auditdomain.ListRequest
}

func (f *fakeAuditService) LogSecurityEvent(context.Context, auditdomain.Event) error { return nil }

func (f *fakeAuditService) List(_ context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	f.lastList = req
	return auditdomain.ListResponse{Events: []auditdomain.SecurityEvent{}}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []auditdomain.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event auditdomain.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return true
}

type testServer struct {
	engine     *gin.Engine
	salesReps  *fakeSalesRepService
	generator  *fakeGenerator
	flags      *fakeFlagService
	audit      *fakeAuditService
	dispatcher *recordingDispatcher
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := policy.NewMemoryEnforcer()
	require.NoError(t, err)
	engine := policy.NewEngine(zaptest.NewLogger(t), nil)
	for _, rule := range policy.DefaultRules(enforcer) {
		require.NoError(t, engine.RegisterRule(rule))
	}

	ts := testServer{
		engine:     NewEngine(observability.Config{}, nil),
		salesReps:  &fakeSalesRepService{},
		generator:  &fakeGenerator{},
		flags:      &fakeFlagService{},
		audit:      &fakeAuditService{},
		dispatcher: &recordingDispatcher{},
	}
	NewServer(ServerParams{
		Gin: ts.engine,
		Cfg: config.Config{Environment: "test"},
		Authorizer: policy.NewAuthorizer(policy.Params{
			Log:    zaptest.NewLogger(t),
			Engine: engine,
			Audit:  ts.dispatcher,
		}),
		SalesRepSvc:    ts.salesReps,
		Identifiers:    ts.generator,
		FeatureFlagSvc: ts.flags,
		AuditSvc:       ts.audit,
	})
	return ts
}

func (ts testServer) do(method, path, role string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderUserID, "7")
		req.Header.Set(HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWorkloadsRequirePolicy(t *testing.T) {
	ts := newTestServer(t)
	ts.salesReps.workloads = []salesrepdomain.Workload{{UserID: 1, Name: "A", Capacity: 10, ActiveProjectCount: 3, UtilizationPercentage: 30}}

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/v1/sales-reps/workloads", "", nil).Code)

	rec := ts.do(http.MethodGet, "/v1/sales-reps/workloads", policy.RoleViewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec)["error"].(map[string]any)["type"])

	rec = ts.do(http.MethodGet, "/v1/sales-reps/workloads", policy.RoleSalesRep, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.EqualValues(t, 30, data[0].(map[string]any)["utilization_percentage"])
}

func TestDecisionsAreAudited(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodGet, "/v1/sales-reps/workloads", policy.RoleViewer, nil)

	require.Len(t, ts.dispatcher.events, 1)
	event := ts.dispatcher.events[0]
	assert.Equal(t, "policy.denied:sales_rep.view", event.Action)
	assert.Equal(t, "7", event.ActorID)
	assert.Equal(t, "/v1/sales-reps/workloads", event.Metadata["path"])
	assert.NotEmpty(t, event.RequestID)
}

func TestInactiveAndSystemAdminHeaders(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sales-reps/workloads", nil)
	req.Header.Set(HeaderUserID, "7")
	req.Header.Set(HeaderUserRole, policy.RoleAdmin)
	req.Header.Set(HeaderUserInactive, "true")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/security-events", nil)
	req.Header.Set(HeaderUserID, "7")
	req.Header.Set(HeaderUserRole, policy.RoleViewer)
	req.Header.Set(HeaderUserPermissions, "reports, system_admin")
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAutoAssign(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/v1/projects/100/sales-rep/auto", policy.RoleProjectManager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["assigned"])

	ts.salesReps.autoRep = &salesrepdomain.SalesRep{ID: 5, Name: "Dana"}
	rec = ts.do(http.MethodPost, "/v1/projects/100/sales-rep/auto", policy.RoleProjectManager, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["assigned"])

	rec = ts.do(http.MethodPost, "/v1/projects/abc/sales-rep/auto", policy.RoleProjectManager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/v1/projects/100/sales-rep/auto", policy.RoleSalesRep, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestManualAssignAndUnassign(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/v1/projects/100/sales-rep", policy.RoleProjectManager, map[string]string{"sales_rep_id": "5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, snowflake.ID(5), ts.salesReps.lastRepID)

	ts.salesReps.assignOK = true
	rec = ts.do(http.MethodPut, "/v1/projects/100/sales-rep", policy.RoleProjectManager, map[string]string{"sales_rep_id": "5"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPut, "/v1/projects/100/sales-rep", policy.RoleProjectManager, map[string]string{"sales_rep_id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodDelete, "/v1/projects/100/sales-rep", policy.RoleProjectManager, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.salesReps.unassignOK = true
	rec = ts.do(http.MethodDelete, "/v1/projects/100/sales-rep", policy.RoleProjectManager, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/projects/100/sales-rep", policy.RoleViewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMintIdentifier(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/v1/identifiers/quote", policy.RoleEstimator, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "QTE-2026-000001", decode(t, rec)["value"])

	rec = ts.do(http.MethodPost, "/v1/identifiers/change-order", policy.RoleEstimator, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "CO-000001", decode(t, rec)["value"])

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/v1/identifiers/invoice", policy.RoleEstimator, nil).Code)
	assert.Equal(t, http.StatusInternalServerError, ts.do(http.MethodPost, "/v1/identifiers/invoice", policy.RoleAccountant, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/v1/identifiers/receipt", policy.RoleAdmin, nil).Code)

	assert.Equal(t, []identifierdomain.Kind{
		identifierdomain.KindQuote,
		identifierdomain.KindChangeOrder,
		identifierdomain.KindInvoice,
	}, ts.generator.kinds)
}

func TestFeatureFlagRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/feature-flags/bulk-quotes/evaluate", policy.RoleEstimator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["enabled"])
	assert.Equal(t, featureflagdomain.EvalContext{UserID: "7", UserRole: policy.RoleEstimator}, ts.flags.lastEval)

	rec = ts.do(http.MethodGet, "/v1/feature-flags/bulk-quotes/evaluate?user_id=99&user_role=viewer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, featureflagdomain.EvalContext{UserID: "99", UserRole: "viewer"}, ts.flags.lastEval)

	body := map[string]any{"enabled": true, "rollout_strategy": "percentage", "percentage": 25}
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/v1/feature-flags/bulk-quotes", policy.RoleViewer, body).Code)

	rec = ts.do(http.MethodPut, "/v1/feature-flags/bulk-quotes", policy.RoleAdmin, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bulk-quotes", ts.flags.lastUpsert.Key)
	require.NotNil(t, ts.flags.lastUpsert.Percentage)
	assert.Equal(t, 25, *ts.flags.lastUpsert.Percentage)

	ts.flags.upsertErr = featureflagdomain.ErrInvalidPercentage
	rec = ts.do(http.MethodPut, "/v1/feature-flags/bulk-quotes", policy.RoleAdmin, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["error"].(map[string]any)["errors"].([]any)
	assert.Equal(t, "percentage", errs[0].(map[string]any)["field"])

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/feature-flags/missing", policy.RoleViewer, nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/v1/feature-flags/bulk-quotes", policy.RoleAdmin, nil).Code)
}

func TestEvaluatePolicyDryRun(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"action": policy.ActionInvoiceSend,
		"user":   map[string]any{"id": "1", "role": policy.RoleAccountant},
	}
	rec := ts.do(http.MethodPost, "/v1/policy/evaluate", policy.RoleAdmin, body)
	require.Equal(t, http.StatusOK, rec.Code)
	decision := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, decision["allow"])
	assert.Equal(t, policy.RuleRoleMatrix, decision["rule_id"])

	// Only the gate on the route itself is audited.
	require.Len(t, ts.dispatcher.events, 1)
	assert.Equal(t, "policy.allowed:policy.evaluate", ts.dispatcher.events[0].Action)

	rec = ts.do(http.MethodPost, "/v1/policy/evaluate", policy.RoleAdmin, map[string]any{"action": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSecurityEvents(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/security-events?action=policy.denied:invoice.send&page_size=10&start_at=2026-10-01", policy.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "policy.denied:invoice.send", ts.audit.lastList.Action)
	assert.Equal(t, 10, ts.audit.lastList.PageSize)
	require.NotNil(t, ts.audit.lastList.StartAt)

	rec = ts.do(http.MethodGet, "/v1/security-events?end_at=yesterday", policy.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/v1/security-events", policy.RoleProjectManager, nil).Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/nope", policy.RoleAdmin, nil).Code)
}
