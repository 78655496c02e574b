// Package rate provides the Redis-backed fixed-window counter that every
// otpauth throttle is built on.
//
// # Window semantics
//
// A window is a single Redis integer key. The first hit of a fresh window
// runs INCR and PEXPIRE inside one Lua script, so a window can never be left
// without a TTL. Keys are namespaced as:
//
//	<prefix>:<operation>:<identity>
//
// The counter reports counts. Callers decide whether a count is a rejection.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the otpauth module.
package rate
