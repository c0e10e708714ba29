package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
)

// Core holds the Prometheus instruments of the numbering, assignment, policy and flag components.
type Core struct {
	policyDecisions     *prometheus.CounterVec
	policyRuleErrors    *prometheus.CounterVec
	sequenceAllocations *prometheus.CounterVec
	assignments         *prometheus.CounterVec
	flagEvaluations     *prometheus.CounterVec
	auditDropped        prometheus.Counter
}

// NewCore registers the core instruments on registerer. A nil registerer uses the default one.
func NewCore(registerer prometheus.Registerer) (*Core, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &Core{
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_decisions_total",
			Help: "Authorization decisions by action, role and outcome.",
		}, []string{"action", "role", "outcome"}),
		policyRuleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_rule_errors_total",
			Help: "Rule conditions that failed during evaluation and were skipped.",
		}, []string{"rule"}),
		sequenceAllocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequence_allocations_total",
			Help: "Sequence values issued by counter name.",
		}, []string{"name", "outcome"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_rep_assignments_total",
			Help: "Sales representative assignment attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		flagEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feature_flag_evaluations_total",
			Help: "Feature flag evaluations by key and result.",
		}, []string{"key", "result"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Security audit events dropped because the dispatch queue was full.",
		}),
	}

	collectors := []prometheus.Collector{
		c.policyDecisions,
		c.policyRuleErrors,
		c.sequenceAllocations,
		c.assignments,
		c.flagEvaluations,
		c.auditDropped,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Core) RecordPolicyDecision(action, role string, allowed bool) {
	if c == nil {
		return
	}
	outcome := OutcomeDenied
	if allowed {
		outcome = OutcomeAllowed
	}
	c.policyDecisions.WithLabelValues(normalizeLabel(action), normalizeLabel(role), outcome).Inc()
}

func (c *Core) RecordPolicyRuleError(ruleID string) {
	if c == nil {
		return
	}
	c.policyRuleErrors.WithLabelValues(normalizeLabel(ruleID)).Inc()
}

func (c *Core) RecordSequenceAllocation(name, outcome string) {
	if c == nil {
		return
	}
	c.sequenceAllocations.WithLabelValues(normalizeLabel(name), outcome).Inc()
}

func (c *Core) RecordAssignment(mode, outcome string) {
	if c == nil {
		return
	}
	c.assignments.WithLabelValues(normalizeLabel(mode), outcome).Inc()
}

func (c *Core) RecordFlagEvaluation(key string, enabled bool) {
	if c == nil {
		return
	}
	result := "off"
	if enabled {
		result = "on"
	}
	c.flagEvaluations.WithLabelValues(normalizeLabel(key), result).Inc()
}

func (c *Core) RecordAuditDropped() {
	if c == nil {
		return
	}
	c.auditDropped.Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
