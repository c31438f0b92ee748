package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Recording(t *testing.T) {
	m := New()

	m.CycleCompleted(120 * time.Millisecond)
	m.CycleCompleted(80 * time.Millisecond)
	if got := testutil.ToFloat64(m.cycles); got != 2 {
		t.Errorf("cycles = %v, want 2", got)
	}
	if samples := testutil.CollectAndCount(m.cycleDuration); samples != 1 {
		t.Errorf("cycle duration series = %d, want 1", samples)
	}

	m.DeviceError(StageRegistry)
	m.DeviceError(StageRegistry)
	m.DeviceError(StageSink)
	if got := testutil.ToFloat64(m.deviceErrors.WithLabelValues(StageRegistry)); got != 2 {
		t.Errorf("registry errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.deviceErrors.WithLabelValues(StageSink)); got != 1 {
		t.Errorf("sink errors = %v, want 1", got)
	}

	m.PublishFailed()
	if got := testutil.ToFloat64(m.publishFailed); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}

	m.Command(CommandSuccess)
	m.Command(CommandAPIError)
	if got := testutil.ToFloat64(m.commands.WithLabelValues(CommandSuccess)); got != 1 {
		t.Errorf("successful commands = %v, want 1", got)
	}

	m.Record(true)
	m.Record(false)
	m.Record(false)
	if got := testutil.ToFloat64(m.records.WithLabelValues("suppressed")); got != 2 {
		t.Errorf("suppressed records = %v, want 2", got)
	}

	m.SetGovernance("relay1", true)
	m.SetGovernance("relay1", false)
	if got := testutil.ToFloat64(m.governanceOn.WithLabelValues("relay1")); got != 0 {
		t.Errorf("governance_on{relay1} = %v, want 0", got)
	}

	m.SetDevices(7)
	if got := testutil.ToFloat64(m.devicesTracked); got != 7 {
		t.Errorf("devices = %v, want 7", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.CycleCompleted(time.Second)
	m.DeviceError(StagePublish)
	m.PublishFailed()
	m.Command(CommandMalformed)
	m.Record(true)
	m.SetGovernance("x", true)
	m.SetDevices(1)

	if m.Registry() != nil {
		t.Error("Registry() on nil Metrics should be nil")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Command(CommandSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`tuyabridge_commands_total{result="success"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
