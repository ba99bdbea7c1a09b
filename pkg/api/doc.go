// Package api implements the scribe HTTP API under /v1.
//
// # Routes
//
// Public:
//
//	POST /v1/user                   signup
//	POST /v1/user/login             issue a bearer token
//	GET  /v1/posts                  list posts
//	GET  /v1/posts/{id}             show a post
//	GET  /v1/posts/{id}/comments    show a post with its comments
//	GET  /v1/tags                   list tags by title
//	GET  /v1/tags/{id}              show a tag
//	GET  /v1/tags/{id}/posts        show a tag with its posts
//	GET  /v1/comments/{id}          show a comment
//
// Bearer token required:
//
//	GET    /v1/user/logout          revoke the presented token
//	GET    /v1/user                 list users (manage-users)
//	GET    /v1/user/roles           list roles (manage-roles)
//	GET    /v1/user/{id}            show a user (self)
//	PUT    /v1/user/{id}            update a user (self)
//	DELETE /v1/user/{id}            disable a user (self)
//	POST   /v1/posts, /v1/tags, /v1/comments
//	PUT    /v1/posts/{id}, /v1/tags/{id}, /v1/comments/{id}
//	DELETE /v1/posts/{id}, /v1/tags/{id}, /v1/comments/{id}
//
// Admins pass every authorization check.
//
// # Request Handling
//
// Every mutating handler runs the same sequence: authenticate (401), load the
// target (404), authorize (403), validate (422), then apply. The account
// guard may still answer 409 when disabling the only enabled admin, or 422
// when a concurrent change made a sole-admin rule fail after validation.
//
// Error bodies:
//
//	401  {"message": "Unauthenticated."}
//	422  {"message": "The given data was invalid.", "errors": {"field": ["..."]}}
//	409  same shape as 422, under "roles"
//	else {"error": "..."}
package api
