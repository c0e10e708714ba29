package policy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"go.uber.org/zap"
)

// Engine holds the rule list. Rules can be registered at any time; ordering is
// decided at evaluation so late registrations slot in by priority.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	log     *zap.Logger
	metrics *metrics.Core
}

func NewEngine(log *zap.Logger, m *metrics.Core) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:     log.Named("policy.engine"),
		metrics: m,
	}
}

func (e *Engine) RegisterRule(rule Rule) error {
	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" || rule.Condition == nil {
		return ErrInvalidRule
	}
	if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
		return ErrInvalidRule
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.ID == rule.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules
}

// Evaluate returns the effect of the highest-priority matching rule. Rules
// whose condition fails or panics are skipped. No match is a deny.
func (e *Engine) Evaluate(pctx Context) Decision {
	for _, rule := range e.Rules() {
		matched, err := e.matches(rule, pctx)
		if err != nil {
			e.metrics.RecordPolicyRuleError(rule.ID)
			e.log.Warn("policy rule skipped",
				zap.String("rule_id", rule.ID),
				zap.String("action", pctx.Action),
				zap.Error(err),
			)
			continue
		}
		if !matched {
			continue
		}
		return Decision{
			Allow:  rule.Effect == EffectAllow,
			Reason: fmt.Sprintf("Matched %s rule %s", rule.Effect, rule.ID),
			RuleID: rule.ID,
		}
	}
	return Decision{Allow: false, Reason: ReasonNoMatch}
}

func (e *Engine) matches(rule Rule, pctx Context) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("condition panicked: %v", r)
		}
	}()
	return rule.Condition.Matches(pctx)
}
