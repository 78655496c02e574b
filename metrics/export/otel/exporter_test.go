package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/otpauth"
)

type fakeSource struct {
	mu        sync.RWMutex
	counters  map[otpauth.MetricID]uint64
	latency   []uint64
	dropped   uint64
	delivered uint64
}

func (f *fakeSource) MetricsSnapshot() otpauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := otpauth.MetricsSnapshot{
		Counters:   make(map[otpauth.MetricID]uint64, len(f.counters)),
		Histograms: map[otpauth.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[otpauth.MetricValidateLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) AuditDelivered() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.delivered
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectInt(t *testing.T, reader *sdkmetric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterPublishesCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		counters: map[otpauth.MetricID]uint64{
			otpauth.MetricLoginSuccess:  3,
			otpauth.MetricDeletionSwept: 2,
		},
		latency:   []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:   1,
		delivered: 9,
	}

	exp, err := NewExporterFromSource(provider.Meter("otpauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	checks := map[string]int64{
		"otpauth_login_success_total":                    3,
		"otpauth_deletion_swept_total":                   2,
		"otpauth_validate_latency_seconds_bucket_le_inf": 8,
		"otpauth_validate_latency_seconds_count":         8,
		"otpauth_audit_dropped_total":                    1,
		"otpauth_audit_delivered_total":                  9,
	}
	for name, want := range checks {
		got, ok := collectInt(t, reader, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("otpauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[otpauth.MetricID]uint64{otpauth.MetricOTPRequested: 1}}

	exp, err := NewExporterFromSource(provider.Meter("otpauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[otpauth.MetricOTPRequested] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
