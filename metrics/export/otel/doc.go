// Package otel publishes otpauth engine metrics as OpenTelemetry observable
// instruments.
//
// Counters become Int64ObservableCounter instruments. The validation latency
// histogram is published as one cumulative gauge per bucket plus a count. The
// caller owns the MeterProvider; the exporter only reads engine snapshots.
package otel
