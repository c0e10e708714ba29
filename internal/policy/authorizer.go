package policy

import (
	"context"

	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/observability/metrics"
	"github.com/smallbiznis/buildledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Engine  *Engine
	Audit   auditdomain.Dispatcher `optional:"true"`
	Metrics *metrics.Core          `optional:"true"`
}

// Authorizer evaluates the engine and records the decision. Recording is best
// effort and never changes the decision.
type Authorizer struct {
	log     *zap.Logger
	engine  *Engine
	audit   auditdomain.Dispatcher
	metrics *metrics.Core
}

func NewAuthorizer(p Params) *Authorizer {
	return &Authorizer{
		log:     p.Log.Named("policy.authorizer"),
		engine:  p.Engine,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (a *Authorizer) Authorize(ctx context.Context, pctx Context) Decision {
	ctx, span := tracing.StartSpan(ctx, "policy.authorize", attribute.String("policy.action", pctx.Action))
	defer span.End()

	decision := a.engine.Evaluate(pctx)
	span.SetAttributes(
		attribute.Bool("policy.allow", decision.Allow),
		attribute.String("policy.rule_id", decision.RuleID),
	)

	a.record(ctx, pctx, decision)
	return decision
}

func (a *Authorizer) Evaluate(pctx Context) Decision {
	return a.engine.Evaluate(pctx)
}

func (a *Authorizer) record(ctx context.Context, pctx Context, decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("recording policy decision panicked", zap.String("action", pctx.Action), zap.Any("panic", r))
		}
	}()

	a.metrics.RecordPolicyDecision(pctx.Action, pctx.role(), decision.Allow)

	if a.audit == nil {
		return
	}
	_ = a.audit.Dispatch(ctx, decisionEvent(pctx, decision))
}

func decisionEvent(pctx Context, decision Decision) auditdomain.Event {
	action := "policy.denied:" + pctx.Action
	outcome := auditdomain.OutcomeDenied
	if decision.Allow {
		action = "policy.allowed:" + pctx.Action
		outcome = auditdomain.OutcomeAllowed
	}

	event := auditdomain.Event{
		Action:    action,
		Outcome:   outcome,
		RequestID: pctx.Request.ID,
		IPAddress: pctx.Request.IP,
		UserAgent: pctx.Request.UserAgent,
		Metadata: map[string]any{
			"reason":  decision.Reason,
			"rule_id": decision.RuleID,
			"method":  pctx.Request.Method,
			"path":    pctx.Request.Path,
		},
	}
	if pctx.User != nil {
		event.ActorID = pctx.User.ID
		event.ActorRole = pctx.User.Role
	}
	if pctx.Resource != nil {
		event.ResourceType = pctx.Resource.Type
		event.ResourceID = pctx.Resource.ID
	}
	return event
}
