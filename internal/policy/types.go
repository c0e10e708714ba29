package policy

import (
	"errors"
	"strings"
)

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Subject is the authenticated caller. Inactive users are denied by a built-in rule.
type Subject struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Inactive    bool     `json:"inactive,omitempty"`
}

func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

type Resource struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}

type Request struct {
	ID        string `json:"id,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Context is everything a rule may inspect. User and Resource are optional.
type Context struct {
	Action   string    `json:"action"`
	User     *Subject  `json:"user,omitempty"`
	Resource *Resource `json:"resource,omitempty"`
	Request  Request   `json:"request"`
}

// Object is the matrix object the action is granted on: the action up to its
// first dot. The resource only names the instance, so assigning a rep on a
// project still checks sales_rep.assign against sales_rep. Un-namespaced
// actions fall back to the resource type.
func (c Context) Object() string {
	if idx := strings.IndexByte(c.Action, '.'); idx > 0 {
		return c.Action[:idx]
	}
	if c.Resource != nil && strings.TrimSpace(c.Resource.Type) != "" {
		return strings.TrimSpace(c.Resource.Type)
	}
	return c.Action
}

func (c Context) role() string {
	if c.User == nil {
		return ""
	}
	return c.User.Role
}

type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
	RuleID string `json:"rule_id,omitempty"`
}

const ReasonNoMatch = "No matching allow rule"

type Rule struct {
	ID        string
	Effect    Effect
	Priority  int
	Condition Condition
}

var (
	ErrInvalidRule   = errors.New("invalid_rule")
	ErrDuplicateRule = errors.New("duplicate_rule")
)
