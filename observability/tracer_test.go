package observability

import (
	"testing"

	"github.com/kbukum/anyhttp/version"
)

func TestDefaultConfigs_ReportBuildVersion(t *testing.T) {
	if got := DefaultTracerConfig("svc").ServiceVersion; got != version.Short() {
		t.Errorf("expected tracer service version %q, got %q", version.Short(), got)
	}
	if got := DefaultMeterConfig("svc").ServiceVersion; got != version.Short() {
		t.Errorf("expected meter service version %q, got %q", version.Short(), got)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		s := sampler(tc.rate)
		if got := s.Description(); got != tc.want {
			t.Errorf("sampler(%v): expected %q, got %q", tc.rate, tc.want, got)
		}
	}
}
