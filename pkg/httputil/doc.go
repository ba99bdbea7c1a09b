// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteMessage(w, http.StatusOK, "Successfully logged out.")
//
// Error responses come in three shapes:
//
//	httputil.WriteUnauthenticated(w)                  // 401 {"message": "Unauthenticated."}
//	httputil.WriteValidationErrors(w, 422, errs)      // {"message": "...", "errors": {...}}
//	httputil.WriteNotFoundError(w, "post not found")  // {"error": "post not found"}
//
// # Request Parsing
//
//	var in validation.PostInput
//	if !httputil.ParseJSONOrError(w, r, &in) {
//		return
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//	)(router)
package httputil
