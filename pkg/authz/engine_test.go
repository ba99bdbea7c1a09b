package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
)

type owned int64

func (o owned) OwnerID() int64 { return int64(o) }

func role(name string) rbac.Role {
	for i, def := range rbac.DefaultRoles() {
		if def.Name == name {
			return rbac.Role{ID: int64(i + 1), Name: def.Name, Permissions: def.Permissions}
		}
	}
	panic("unknown role " + name)
}

func actor(id int64, roles ...string) *auth.AuthContext {
	ac := &auth.AuthContext{User: &auth.User{ID: id, Enabled: true}}
	for _, name := range roles {
		ac.Roles = append(ac.Roles, role(name))
	}
	return ac
}

func TestEngine_AdminOverride(t *testing.T) {
	engine := NewEngine(nil, nil)
	admin := actor(1, rbac.RoleAdmin)

	for key := range policies {
		d := engine.Authorize(context.Background(), admin, Request{
			Resource: key.resource,
			Action:   key.action,
			Target:   owned(99),
		})
		assert.True(t, d.Allowed, "admin should be allowed %s", ruleName(key.resource, key.action))
		assert.Equal(t, RuleAdminOverride, d.Rule)
	}

	// Even actions without a policy
	d := engine.Authorize(context.Background(), admin, Request{Resource: ResourceTag, Action: ActionViewRoles})
	assert.True(t, d.Allowed)
}

func TestEngine_ContentPolicies(t *testing.T) {
	engine := NewEngine(nil, nil)
	editor := actor(2, rbac.RoleEditor)
	commenter := actor(3, rbac.RoleCommenter)
	nobody := actor(4, rbac.RoleDefault)

	tests := []struct {
		name    string
		actor   Subject
		req     Request
		allowed bool
	}{
		{"editor creates post", editor, Request{Resource: ResourcePost, Action: ActionCreate}, true},
		{"commenter creates post", commenter, Request{Resource: ResourcePost, Action: ActionCreate}, false},
		{"editor updates own post", editor, Request{Resource: ResourcePost, Action: ActionUpdate, Target: owned(2)}, true},
		{"editor updates other post", editor, Request{Resource: ResourcePost, Action: ActionUpdate, Target: owned(9)}, false},
		{"editor deletes own post", editor, Request{Resource: ResourcePost, Action: ActionDelete, Target: owned(2)}, true},
		{"editor deletes other post", editor, Request{Resource: ResourcePost, Action: ActionDelete, Target: owned(9)}, false},
		{"editor update without target", editor, Request{Resource: ResourcePost, Action: ActionUpdate}, false},
		{"commenter creates comment", commenter, Request{Resource: ResourceComment, Action: ActionCreate}, true},
		{"default role creates comment", nobody, Request{Resource: ResourceComment, Action: ActionCreate}, false},
		{"commenter updates own comment", commenter, Request{Resource: ResourceComment, Action: ActionUpdate, Target: owned(3)}, true},
		{"commenter updates other comment", commenter, Request{Resource: ResourceComment, Action: ActionUpdate, Target: owned(2)}, false},
		{"commenter deletes own comment", commenter, Request{Resource: ResourceComment, Action: ActionDelete, Target: owned(3)}, true},
		{"commenter creates tag", commenter, Request{Resource: ResourceTag, Action: ActionCreate}, false},
		{"editor creates tag", editor, Request{Resource: ResourceTag, Action: ActionCreate}, false},
		{"editor deletes tag", editor, Request{Resource: ResourceTag, Action: ActionDelete}, false},
		{"unknown action", editor, Request{Resource: ResourcePost, Action: ActionViewRoles}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Authorize(context.Background(), tt.actor, tt.req)
			assert.Equal(t, tt.allowed, d.Allowed, d.Reason)
			if !tt.allowed {
				assert.True(t, errors.Is(d.Err(), ErrForbidden))
			}
		})
	}
}

func TestEngine_TagPermissionsAreIndependent(t *testing.T) {
	engine := NewEngine(nil, nil)

	// A custom role holding only delete-tags may delete but not create
	deleter := &auth.AuthContext{
		User:  &auth.User{ID: 7},
		Roles: []rbac.Role{{ID: 50, Name: "janitor", Permissions: []rbac.Permission{rbac.PermDeleteTags}}},
	}

	assert.True(t, engine.Allowed(context.Background(), deleter, Request{Resource: ResourceTag, Action: ActionDelete}))
	assert.False(t, engine.Allowed(context.Background(), deleter, Request{Resource: ResourceTag, Action: ActionCreate}))
	assert.False(t, engine.Allowed(context.Background(), deleter, Request{Resource: ResourceTag, Action: ActionUpdate}))
}

func TestEngine_UserPolicies(t *testing.T) {
	engine := NewEngine(nil, nil)
	editor := actor(2, rbac.RoleEditor)
	self := &auth.User{ID: 2}
	other := &auth.User{ID: 5}

	for _, action := range []Action{ActionView, ActionUpdate, ActionDelete} {
		assert.True(t, engine.Allowed(context.Background(), editor, Request{Resource: ResourceUser, Action: action, Target: self}))
		assert.False(t, engine.Allowed(context.Background(), editor, Request{Resource: ResourceUser, Action: action, Target: other}))
	}

	assert.False(t, engine.Allowed(context.Background(), editor, Request{Resource: ResourceUser, Action: ActionViewAny}))
	assert.False(t, engine.Allowed(context.Background(), editor, Request{Resource: ResourceUser, Action: ActionViewRoles}))

	userManager := &auth.AuthContext{
		User:  &auth.User{ID: 8},
		Roles: []rbac.Role{{Name: "support", Permissions: []rbac.Permission{rbac.PermManageUsers}}},
	}
	assert.True(t, engine.Allowed(context.Background(), userManager, Request{Resource: ResourceUser, Action: ActionViewAny}))
	assert.False(t, engine.Allowed(context.Background(), userManager, Request{Resource: ResourceUser, Action: ActionViewRoles}))
}

func TestEngine_Unauthenticated(t *testing.T) {
	engine := NewEngine(nil, nil)

	var missing *auth.AuthContext
	for _, subject := range []Subject{nil, missing, &auth.AuthContext{}} {
		d := engine.Authorize(context.Background(), subject, Request{Resource: ResourcePost, Action: ActionCreate})
		assert.False(t, d.Allowed)
		assert.False(t, d.Authenticated())
		assert.True(t, errors.Is(d.Err(), ErrUnauthenticated))
	}
}

func TestEngine_RecordsMetricsAndAudit(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry(), nil)
	auditLog := audit.NewMemoryLogger()
	engine := NewEngine(metrics, auditLog)

	commenter := actor(3, rbac.RoleCommenter)

	d := engine.Authorize(context.Background(), commenter, Request{
		Resource: ResourcePost,
		Action:   ActionDelete,
		Target:   owned(9),
		TargetID: 42,
	})
	require.False(t, d.Allowed)
	assert.Nil(t, engine.Authorize(context.Background(), commenter, Request{Resource: ResourceComment, Action: ActionCreate}).Err())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("post", "delete", "deny")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("comment", "create", "allow")))

	denied := auditLog.EventsOfType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, audit.EventStatusDenied, denied[0].Status)
	assert.Equal(t, audit.ResourceTypePost, denied[0].ResourceType)
	assert.Equal(t, "42", denied[0].ResourceID)
	require.NotNil(t, denied[0].UserID)
	assert.Equal(t, int64(3), *denied[0].UserID)
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Decision{Allowed: true}.Err())
	assert.Equal(t, ErrForbidden, Decision{}.Err())
	assert.Equal(t, ErrUnauthenticated, Decision{unauthenticated: true}.Err())
}

func TestEngine_SpanCarriesDecision(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	engine := NewEngine(nil, nil)
	engine.Authorize(context.Background(), actor(5, rbac.RoleCommenter), Request{
		Resource: ResourcePost,
		Action:   ActionDelete,
		Target:   owned(9),
		TargetID: 42,
	})
	engine.Authorize(context.Background(), nil, Request{Resource: ResourcePost, Action: ActionCreate})

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	denied := ended[0]
	assert.Equal(t, "authz.Authorize", denied.Name())
	assert.Contains(t, denied.Attributes(), observability.AttrActorUserID.Int64(5))
	assert.Contains(t, denied.Attributes(), observability.AttrOutcome.String("denied"))
	assert.Equal(t, codes.Unset, denied.Status().Code, "a denial is not a span error")
	require.Len(t, denied.Events(), 1)
	assert.Equal(t, "authz.decision", denied.Events()[0].Name)

	for _, kv := range ended[1].Attributes() {
		assert.NotEqual(t, observability.AttrActorUserID, kv.Key, "anonymous requests carry no actor")
	}
}
