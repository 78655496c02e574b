// Package stores provides Redis-backed, short-lived record stores for the
// passwordless flows: OTP challenges and the access-token denylist.
//
// # Design
//
// OTP records are versioned, binary-encoded values with a TTL. One live record
// exists per email; Save overwrites. Consume compares and deletes in a single
// Lua script, then repeats the comparison in Go with constant-time compare.
// Only the SHA-256 of the normalized code is stored.
//
// # Architecture boundaries
//
// This package owns persistence of transient challenge records. It does NOT
// generate codes, enforce rate limits, or make authentication decisions.
//
// # What this package must NOT do
//
//   - Import otpauth or any sibling internal package.
//   - Log or expose plaintext codes.
//   - Use non-constant-time comparisons for secret matching.
package stores
