package observability

import "testing"

func TestRecorder_New(t *testing.T) {
	rec := NewRecorder("relay-a")
	if rec == nil {
		t.Fatal("expected non-nil recorder")
	}
	if rec.node != "relay-a" {
		t.Errorf("node = %s, want relay-a", rec.node)
	}
}

func TestRecorder_Methods(t *testing.T) {
	// Setup with metrics enabled
	err := Setup(t.Context(), Config{
		Service: "test",
		Metrics: true,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Shutdown(t.Context())

	rec := NewRecorder("test-node")

	// These should not panic
	rec.LsaSent()
	rec.LsaReceived()
	rec.LsaStale()
	rec.PathAccepted()
	rec.PathPruned()
	rec.DatagramDelivered()
	rec.DatagramDropped()
	rec.SetQueueFillRatio(0.5)
}

func TestRecorder_NoopWhenDisabled(t *testing.T) {
	// Without Setup, recorders must be safe no-ops.
	rec := NewRecorder("idle-node")
	rec.LsaSent()
	rec.DatagramDropped()
	rec.SetQueueFillRatio(1)
}
