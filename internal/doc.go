// Package internal contains helper utilities that are intentionally private to otpauth,
// including secure code generation and log-safe fingerprints.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: OTP issue/verify throttles
//   - otp: the OTP issue/verify service
//   - rate: core Redis-backed fixed-window counter
//   - stores: OTP record, denylist, and settings stores
//   - templates: HTML bodies for every outgoing mail
//
// # What this package must NOT do
//
//   - Export types that appear in the public otpauth API.
//   - Be imported by any package outside the otpauth module.
package internal
