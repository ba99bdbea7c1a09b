// Package middleware provides HTTP middleware for bearer token authentication.
//
// AuthMiddleware resolves "Authorization: Bearer <token>" to the token, its
// owner and the owner's roles, and stores the resulting *auth.AuthContext in
// the request context. Disabled users are rejected as unauthenticated even
// when their token is still live.
//
//	authn := middleware.NewAuthMiddleware(tokenManager, userStore, roleStore, false)
//	router.Use(authn.Handler)
//
//	// later, in a handler
//	actor := middleware.GetAuthContext(r)
package middleware
