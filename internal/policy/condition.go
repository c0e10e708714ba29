package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Condition is one predicate kind. An error means the condition could not be
// evaluated; the engine treats that rule as not matching.
type Condition interface {
	Matches(pctx Context) (bool, error)
}

type RoleEquals struct {
	Role string
}

func (c RoleEquals) Matches(pctx Context) (bool, error) {
	return pctx.User != nil && strings.EqualFold(pctx.User.Role, c.Role), nil
}

type RoleIn struct {
	Roles []string
}

func (c RoleIn) Matches(pctx Context) (bool, error) {
	if pctx.User == nil {
		return false, nil
	}
	for _, role := range c.Roles {
		if strings.EqualFold(pctx.User.Role, role) {
			return true, nil
		}
	}
	return false, nil
}

type PermissionIncludes struct {
	Permission string
}

func (c PermissionIncludes) Matches(pctx Context) (bool, error) {
	return pctx.User.HasPermission(c.Permission), nil
}

// ResourceOwner matches when the resource's owner is the caller, whatever the role.
type ResourceOwner struct{}

func (ResourceOwner) Matches(pctx Context) (bool, error) {
	if pctx.User == nil || pctx.Resource == nil {
		return false, nil
	}
	owner := strings.TrimSpace(pctx.Resource.OwnerID)
	return owner != "" && owner == strings.TrimSpace(pctx.User.ID), nil
}

type ActionEquals struct {
	Action string
}

func (c ActionEquals) Matches(pctx Context) (bool, error) {
	return pctx.Action == c.Action, nil
}

type ActionPrefix struct {
	Prefix string
}

func (c ActionPrefix) Matches(pctx Context) (bool, error) {
	return c.Prefix != "" && strings.HasPrefix(pctx.Action, c.Prefix), nil
}

// AllOf matches when every condition does; an empty list never matches.
type AllOf struct {
	Conditions []Condition
}

func (c AllOf) Matches(pctx Context) (bool, error) {
	if len(c.Conditions) == 0 {
		return false, nil
	}
	for _, cond := range c.Conditions {
		ok, err := cond.Matches(pctx)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

type AnyOf struct {
	Conditions []Condition
}

func (c AnyOf) Matches(pctx Context) (bool, error) {
	var errs []error
	for _, cond := range c.Conditions {
		ok, err := cond.Matches(pctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

type Not struct {
	Condition Condition
}

func (c Not) Matches(pctx Context) (bool, error) {
	if c.Condition == nil {
		return false, ErrInvalidRule
	}
	ok, err := c.Condition.Matches(pctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type Authenticated struct{}

func (Authenticated) Matches(pctx Context) (bool, error) {
	return pctx.User != nil && strings.TrimSpace(pctx.User.ID) != "", nil
}

type InactiveUser struct{}

func (InactiveUser) Matches(pctx Context) (bool, error) {
	return pctx.User != nil && pctx.User.Inactive, nil
}

// Enforcer is the part of a casbin enforcer the role matrix needs.
type Enforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

// CasbinPermission asks the role matrix whether role:<role> may perform the
// action on the context's object.
type CasbinPermission struct {
	Enforcer Enforcer
}

func (c CasbinPermission) Matches(pctx Context) (bool, error) {
	if c.Enforcer == nil {
		return false, errors.New("casbin enforcer not configured")
	}
	role := strings.ToLower(strings.TrimSpace(pctx.role()))
	if role == "" || pctx.Action == "" {
		return false, nil
	}
	return c.Enforcer.Enforce(RoleSubject(role), pctx.Object(), pctx.Action)
}

// Func adapts a Go function for rules registered programmatically.
type Func struct {
	Name string
	Fn   func(pctx Context) (bool, error)
}

func (c Func) Matches(pctx Context) (bool, error) {
	if c.Fn == nil {
		return false, fmt.Errorf("condition %q has no function", c.Name)
	}
	return c.Fn(pctx)
}

func RoleSubject(role string) string {
	return "role:" + role
}
