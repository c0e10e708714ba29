package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubEnforcer struct {
	got []interface{}
	ok  bool
	err error
}

func (s *stubEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	s.got = rvals
	return s.ok, s.err
}

func TestContextObject(t *testing.T) {
	assert.Equal(t, "quote", Context{Action: "quote.approve"}.Object())
	assert.Equal(t, "quote", Context{Action: "quote.approve", Resource: &Resource{Type: "project"}}.Object())
	assert.Equal(t, "sales_rep", Context{Action: "sales_rep.assign", Resource: &Resource{Type: "project", ID: "7"}}.Object())
	assert.Equal(t, "project", Context{Action: "archive", Resource: &Resource{Type: " project "}}.Object())
	assert.Equal(t, "dashboard", Context{Action: "dashboard"}.Object())
}

func TestCasbinPermissionQueriesRoleSubject(t *testing.T) {
	stub := &stubEnforcer{ok: true}
	cond := CasbinPermission{Enforcer: stub}

	ok, err := cond.Matches(Context{Action: ActionQuoteCreate, User: user("u1", " Estimator ")})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"role:estimator", ObjectQuote, ActionQuoteCreate}, stub.got)

	_, err = CasbinPermission{}.Matches(Context{Action: ActionQuoteCreate, User: user("u1", RoleEstimator)})
	assert.Error(t, err)
}

func TestCompositeConditions(t *testing.T) {
	pctx := Context{Action: ActionQuoteApprove, User: user("u1", RoleProjectManager)}
	failing := Func{Name: "failing", Fn: func(Context) (bool, error) { return false, errors.New("down") }}

	ok, err := AllOf{}.Matches(pctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, _ = AllOf{Conditions: []Condition{ActionPrefix{Prefix: "quote."}, RoleIn{Roles: []string{RoleAdmin, RoleProjectManager}}}}.Matches(pctx)
	assert.True(t, ok)

	ok, err = AnyOf{Conditions: []Condition{failing, RoleEquals{Role: RoleProjectManager}}}.Matches(pctx)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = AnyOf{Conditions: []Condition{failing, RoleEquals{Role: RoleAdmin}}}.Matches(pctx)
	assert.Error(t, err)
	assert.False(t, ok)

	ok, _ = Not{Condition: RoleEquals{Role: RoleAdmin}}.Matches(pctx)
	assert.True(t, ok)

	_, err = Not{}.Matches(pctx)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestConditionsWithoutUser(t *testing.T) {
	pctx := Context{Action: ActionProjectView, Resource: &Resource{Type: ObjectProject, OwnerID: ""}}

	for _, cond := range []Condition{
		RoleEquals{Role: RoleViewer},
		RoleIn{Roles: []string{RoleViewer}},
		PermissionIncludes{Permission: PermissionSystemAdmin},
		ResourceOwner{},
		Authenticated{},
		InactiveUser{},
		CasbinPermission{Enforcer: &stubEnforcer{ok: true}},
	} {
		ok, err := cond.Matches(pctx)
		assert.NoError(t, err)
		assert.False(t, ok, "%T", cond)
	}
}
