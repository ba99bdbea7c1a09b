package authz

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
)

// RuleAdminOverride names the decision rule used for admins
const RuleAdminOverride = "admin-override"

// Engine evaluates authorization requests. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	metrics *observability.Metrics
	audit   audit.Logger
	now     func() time.Time
}

// NewEngine creates an engine. metrics and auditLogger may be nil.
func NewEngine(metrics *observability.Metrics, auditLogger audit.Logger) *Engine {
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}
	return &Engine{
		metrics: metrics,
		audit:   auditLogger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authorize decides req for actor
func (e *Engine) Authorize(ctx context.Context, actor Subject, req Request) Decision {
	attrs := []attribute.KeyValue{
		attribute.String("authz.resource", string(req.Resource)),
		attribute.String("authz.action", string(req.Action)),
	}
	if actor != nil && actor.ID() > 0 {
		attrs = append(attrs, observability.AttrActorUserID.Int64(actor.ID()))
	}
	if req.TargetID != 0 {
		attrs = append(attrs, attribute.Int64("authz.target_id", req.TargetID))
	}
	ctx, span := observability.StartSpan(ctx, "authz.Authorize", attrs...)
	defer span.End()

	decision := e.evaluate(actor, req)

	span.AddEvent("authz.decision", trace.WithAttributes(
		attribute.String("authz.rule", decision.Rule),
		attribute.String("authz.reason", decision.Reason),
	))
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
	}
	observability.RecordOutcome(span, outcome, nil)
	e.metrics.RecordAuthzDecision(string(req.Resource), string(req.Action), decision.Allowed)

	if !decision.Allowed {
		e.recordDenial(ctx, actor, req, decision)
	}

	return decision
}

// Allowed is shorthand for Authorize(...).Allowed
func (e *Engine) Allowed(ctx context.Context, actor Subject, req Request) bool {
	return e.Authorize(ctx, actor, req).Allowed
}

func (e *Engine) evaluate(actor Subject, req Request) Decision {
	decision := Decision{
		Rule:      ruleName(req.Resource, req.Action),
		CheckedAt: e.now(),
	}

	if actor == nil || actor.ID() <= 0 {
		decision.unauthenticated = true
		decision.Reason = "no authenticated actor"
		return decision
	}

	if actor.HasRole(rbac.RoleAdmin) {
		decision.Allowed = true
		decision.Rule = RuleAdminOverride
		decision.Reason = "actor holds the admin role"
		return decision
	}

	check, ok := policies[policyKey{req.Resource, req.Action}]
	if !ok {
		decision.Reason = "no policy for " + decision.Rule
		return decision
	}

	decision.Allowed, decision.Reason = check(actor, req.Target)
	return decision
}

func (e *Engine) recordDenial(ctx context.Context, actor Subject, req Request, decision Decision) {
	var actorID int64
	if actor != nil {
		actorID = actor.ID()
	}

	var resourceID string
	if req.TargetID > 0 {
		resourceID = strconv.FormatInt(req.TargetID, 10)
	}

	if err := e.audit.LogAuthorization(ctx, audit.EventTypeAuthzAccessDenied, audit.UserRef(actorID),
		audit.ResourceType(req.Resource), resourceID, audit.EventStatusDenied,
		string(req.Action)+": "+decision.Reason,
	); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to write audit event")
	}
}
