// Package validation checks request payloads before they reach the stores.
//
// Validation runs in two phases. Shape rules (presence, length, format,
// password strength) run first and need nothing but the payload. Business
// rules (uniqueness, existence of referenced rows, the sole-admin rules) run
// second, only for fields whose shape passed, and consult a Lookup.
//
// Every failing field is collected; the result is an Errors map that doubles
// as an error value:
//
//	err := validator.Signup(ctx, in)
//	var verrs validation.Errors
//	if errors.As(err, &verrs) {
//		// 422 {"message": "The given data was invalid.", "errors": verrs}
//	}
//
// The sole-admin rules are pure functions of AdminFacts, which callers load
// once per request. The accounts guard re-runs them inside its transaction
// against a fresh count.
package validation
