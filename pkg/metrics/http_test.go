package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/api/v1/mandates", 201, 40*time.Millisecond)
	m.Observe("POST", "/api/v1/mandates", 201, 10*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bikerent_http_requests_total", "route", "/api/v1/mandates"); err != nil || got != 2 {
		t.Fatalf("expected 2 mandate requests, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bikerent_http_requests_total", "route", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route under unknown, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "bikerent_http_request_duration_seconds", "route", "/api/v1/mandates"); err != nil || got <= 0 {
		t.Fatalf("expected latency recorded, got %f err=%v", got, err)
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("GET", "/", 200, time.Millisecond)
}
