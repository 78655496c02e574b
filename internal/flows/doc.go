// Package flows contains the orchestration behind every Engine operation.
//
// Each flow (RunRequestOTP, RunLogin, RunRefresh, RunSweep, ...) takes a typed
// dependency struct and returns a result carrying a failure kind. The root
// package maps failure kinds to its exported sentinel errors, emits audit
// events and bumps metrics.
//
// Flows own no resources. Stores, issuers and mailers are built by the Engine
// and reach this package only through the interfaces declared in deps.go.
// This package must not import the root package.
package flows
