package policy

import (
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProject       = "project"
	ObjectQuote         = "quote"
	ObjectInvoice       = "invoice"
	ObjectChangeOrder   = "change_order"
	ObjectFile          = "file"
	ObjectSalesRep      = "sales_rep"
	ObjectDashboard     = "dashboard"
	ObjectFeatureFlag   = "feature_flag"
	ObjectPolicy        = "policy"
	ObjectSecurityEvent = "security_event"
)

const (
	ActionProjectView   = "project.view"
	ActionProjectCreate = "project.create"
	ActionProjectUpdate = "project.update"
	ActionProjectDelete = "project.delete"

	ActionQuoteView    = "quote.view"
	ActionQuoteCreate  = "quote.create"
	ActionQuoteUpdate  = "quote.update"
	ActionQuoteApprove = "quote.approve"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceCreate = "invoice.create"
	ActionInvoiceUpdate = "invoice.update"
	ActionInvoiceSend   = "invoice.send"

	ActionChangeOrderView    = "change_order.view"
	ActionChangeOrderCreate  = "change_order.create"
	ActionChangeOrderApprove = "change_order.approve"

	ActionFileView   = "file.view"
	ActionFileUpload = "file.upload"

	ActionSalesRepView   = "sales_rep.view"
	ActionSalesRepAssign = "sales_rep.assign"

	ActionDashboardView = "dashboard.view"

	ActionFeatureFlagView   = "feature_flag.view"
	ActionFeatureFlagManage = "feature_flag.manage"

	ActionPolicyEvaluate    = "policy.evaluate"
	ActionSecurityEventView = "security_event.view"
)

const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleEstimator      = "estimator"
	RoleSalesRep       = "sales_rep"
	RoleAccountant     = "accountant"
	RoleViewer         = "viewer"
)

// NewEnforcer loads the role matrix from casbin_rule and seeds the defaults.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds the seeded matrix without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Read-only baseline
		{RoleSubject(RoleViewer), ObjectProject, ActionProjectView},
		{RoleSubject(RoleViewer), ObjectQuote, ActionQuoteView},
		{RoleSubject(RoleViewer), ObjectInvoice, ActionInvoiceView},
		{RoleSubject(RoleViewer), ObjectChangeOrder, ActionChangeOrderView},
		{RoleSubject(RoleViewer), ObjectFile, ActionFileView},
		{RoleSubject(RoleViewer), ObjectDashboard, ActionDashboardView},
		{RoleSubject(RoleViewer), ObjectFeatureFlag, ActionFeatureFlagView},

		// Estimators price work
		{RoleSubject(RoleEstimator), ObjectQuote, ActionQuoteCreate},
		{RoleSubject(RoleEstimator), ObjectQuote, ActionQuoteUpdate},
		{RoleSubject(RoleEstimator), ObjectChangeOrder, ActionChangeOrderCreate},
		{RoleSubject(RoleEstimator), ObjectFile, ActionFileUpload},

		// Sales reps own intake
		{RoleSubject(RoleSalesRep), ObjectProject, ActionProjectCreate},
		{RoleSubject(RoleSalesRep), ObjectProject, ActionProjectUpdate},
		{RoleSubject(RoleSalesRep), ObjectQuote, ActionQuoteCreate},
		{RoleSubject(RoleSalesRep), ObjectSalesRep, ActionSalesRepView},
		{RoleSubject(RoleSalesRep), ObjectFile, ActionFileUpload},

		// Accountants bill
		{RoleSubject(RoleAccountant), ObjectInvoice, ActionInvoiceCreate},
		{RoleSubject(RoleAccountant), ObjectInvoice, ActionInvoiceUpdate},
		{RoleSubject(RoleAccountant), ObjectInvoice, ActionInvoiceSend},

		// Project managers run delivery and staffing
		{RoleSubject(RoleProjectManager), ObjectProject, ActionProjectDelete},
		{RoleSubject(RoleProjectManager), ObjectQuote, ActionQuoteApprove},
		{RoleSubject(RoleProjectManager), ObjectChangeOrder, ActionChangeOrderApprove},
		{RoleSubject(RoleProjectManager), ObjectSalesRep, ActionSalesRepAssign},

		// Admins hold every action on every object
		{RoleSubject(RoleAdmin), ObjectProject, "*"},
		{RoleSubject(RoleAdmin), ObjectQuote, "*"},
		{RoleSubject(RoleAdmin), ObjectInvoice, "*"},
		{RoleSubject(RoleAdmin), ObjectChangeOrder, "*"},
		{RoleSubject(RoleAdmin), ObjectFile, "*"},
		{RoleSubject(RoleAdmin), ObjectSalesRep, "*"},
		{RoleSubject(RoleAdmin), ObjectDashboard, "*"},
		{RoleSubject(RoleAdmin), ObjectFeatureFlag, "*"},
		{RoleSubject(RoleAdmin), ObjectPolicy, "*"},
		{RoleSubject(RoleAdmin), ObjectSecurityEvent, "*"},
	}

	groupings := [][]string{
		{RoleSubject(RoleEstimator), RoleSubject(RoleViewer)},
		{RoleSubject(RoleSalesRep), RoleSubject(RoleViewer)},
		{RoleSubject(RoleAccountant), RoleSubject(RoleViewer)},
		{RoleSubject(RoleProjectManager), RoleSubject(RoleEstimator)},
		{RoleSubject(RoleProjectManager), RoleSubject(RoleSalesRep)},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
