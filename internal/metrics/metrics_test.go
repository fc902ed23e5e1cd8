package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/v1/schedules", "/v1/schedules"},
		{"/v1/schedules/6f1c2f1e-8e4b-4c9a-9d8e-1b2c3d4e5f60", "/v1/schedules/{id}"},
		{"/v1/schedules/6f1c2f1e-8e4b-4c9a-9d8e-1b2c3d4e5f60/pause", "/v1/schedules/{id}/pause"},
		{"/v1/deliveries/42", "/v1/deliveries/{id}"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIncTriggerRegistrations(t *testing.T) {
	before := testutil.ToFloat64(TriggerRegistrationsTotal.WithLabelValues("once", "error"))
	IncTriggerRegistrations("once", errors.New("boom"))
	after := testutil.ToFloat64(TriggerRegistrationsTotal.WithLabelValues("once", "error"))
	if after-before != 1 {
		t.Errorf("expected error counter to increase by 1, got %v", after-before)
	}
}
