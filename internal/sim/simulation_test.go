package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulation_QuitCommand(t *testing.T) {
	net := lineNetwork(t, testConfig())
	s := NewSimulation(net, testConfig(), &bytes.Buffer{})
	s.Enqueue("quit")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("simulation did not quit on command")
	}
}

func TestSimulation_ContextCancel(t *testing.T) {
	net := lineNetwork(t, testConfig())
	s := NewSimulation(net, testConfig(), &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not stop on cancellation")
	}
}

func TestSimulation_Reset(t *testing.T) {
	net := lineNetwork(t, testConfig())
	s := NewSimulation(net, testConfig(), &bytes.Buffer{})

	replacement := lineNetwork(t, testConfig())
	s.Reset(replacement)
	assert.Same(t, replacement, s.Network())
}
