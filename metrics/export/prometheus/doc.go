// Package prometheus renders otpauth engine metrics in the Prometheus text
// exposition format.
//
// Counters are named otpauth_*_total and the one histogram is
// otpauth_validate_latency_seconds. Nothing is registered globally; callers
// mount [Exporter.Handler] where they like.
package prometheus
