// Package session provides Redis-backed refresh-session persistence and the
// compact binary encoding used to store it.
//
// # Binary encoding
//
// A refresh session is stored as:
//
//	version(1) userIDLen(1) userID refreshHash(32) createdAt(8) expiresAt(8)
//
// All integers are big-endian unix seconds. The Lua rotation script reads the
// same layout, so the two must change together.
//
// # Rotation
//
// [Store.Rotate] replaces the session of the presented refresh token with the
// session of its successor in one Lua call. A missing session means the token
// was already rotated or revoked. A hash mismatch is treated as replay: the
// session is deleted.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT parse JWTs or decide authentication policy.
//
// # What this package must NOT do
//
//   - Import otpauth or jwt (no upward imports).
//   - Store plaintext refresh tokens.
package session
