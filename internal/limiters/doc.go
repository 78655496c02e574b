// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate counter.
//
// # Limiters
//
//   - [OTPLimiter]: per-email issue window, per-email verify window, and an
//     optional per-IP issue window.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import otpauth or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
