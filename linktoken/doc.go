// Package linktoken mints and verifies the opaque HMAC-SHA256 tokens that
// travel inside emailed links: account-deletion cancellation and
// unsubscribe.
//
// # Token format
//
// A signed token is base64url of
//
//	payload "." hex(HMAC-SHA256(key, payload))
//
// where payload is either the subject alone or "subject.unixMillis". The
// token is parsed from the right, so subjects may contain dots (emails do).
// Unsubscribe tokens are plain hex(HMAC-SHA256(key, email)) and never expire.
//
// Keys are derived per purpose from one root secret with HKDF-SHA256, so a
// token minted for one purpose never verifies for another.
//
// # What this package must NOT do
//
//   - Compare signatures with anything but [hmac.Equal].
//   - Keep state. Every token is self-contained.
package linktoken
