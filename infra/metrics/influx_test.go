package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/medrota/rotaplan/core/metrics"
)

func TestInfluxSink_RecordResolve(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	sample := coremetrics.ResolveSample{
		Status:   "valid",
		Relaxed:  false,
		Elapsed:  250 * time.Millisecond,
		Trainees: 12,
		Time:     now,
	}

	if err := sink.RecordResolve(sample); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("resolve_event").
		AddTag("status", "valid").
		AddTag("relaxed", "false").
		AddTag("component", "engine").
		AddField("elapsed_ms", 250.0).
		AddField("trainees", 12).
		AddField("reason", "").
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "token", "org", "bucket")
	if !called {
		t.Fatal("expected health endpoint to be probed")
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", sink)
	}
}
