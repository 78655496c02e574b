// Package jwt issues and verifies the access, refresh, and password-reset
// tokens of otpauth.
//
// Every token carries a "typ" claim. All verification goes through one
// parse step that decodes into [Claims] and then branches on the
// discriminator into a typed view, so a refresh or reset token can never be
// accepted where an access token is expected.
package jwt
