// Package middleware adapts otpauth access-token validation to net/http.
//
// [Guard] reads the Authorization bearer token, calls ValidateAccess and puts
// the verified claims on the request context. [RequireStrict] additionally
// loads the account from the user store, so deleted accounts are refused
// before their access tokens expire.
//
// The package only translates HTTP; it never parses tokens or touches Redis
// itself.
package middleware
