// Package otpauth provides passwordless authentication and account lifecycle
// operations: email one-time codes, JWT access and refresh tokens with
// rotation, dual-code email change, and scheduled account deletion with
// signed cancellation links.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Redis is the source of truth for
// codes, rate windows, refresh sessions and the optional access denylist;
// user records live behind the [UserStore] interface.
//
// # Architecture boundaries
//
// otpauth is the public surface. It exposes [Engine], [Builder], [Config],
// the sentinel errors in errors.go, and value types (LoginResult,
// DeletionStatus, SweepReport, ...). Flow orchestration, Redis records and
// rate windows live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log, return or persist a plaintext one-time code outside the delivery email.
//   - Reveal through RequestPasswordReset whether an address has an account.
//   - Keep package-level mutable state; settings are cached per Engine.
package otpauth
