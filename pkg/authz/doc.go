// Package authz decides whether an actor may perform an action on a resource.
//
// The Engine applies two layers in order:
//
//  1. Admin override: an actor holding the "admin" role is allowed every
//     action without consulting any policy.
//  2. Resource policies: a fixed table keyed by (resource, action). Content
//     mutations check a permission, and update/delete additionally require
//     the actor to own the target. User self-service actions are limited to
//     the actor's own record.
//
// A missing actor is reported as unauthenticated, never as forbidden:
//
//	decision := engine.Authorize(ctx, actor, authz.Request{
//		Resource: authz.ResourcePost,
//		Action:   authz.ActionUpdate,
//		Target:   post,
//		TargetID: post.ID,
//	})
//	if err := decision.Err(); err != nil {
//		// errors.Is(err, authz.ErrUnauthenticated) -> 401
//		// errors.Is(err, authz.ErrForbidden)       -> 403
//	}
//
// Every decision is counted in scribe_authz_decisions_total, recorded as a
// span event, and denials are written to the audit log.
package authz
