package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsole(t *testing.T) (*Console, *bytes.Buffer, *Simulation) {
	t.Helper()
	net := lineNetwork(t, testConfig())
	step(net, 8)

	out := &bytes.Buffer{}
	s := NewSimulation(net, testConfig(), out)
	return s.console, out, s
}

func TestConsole_Quit(t *testing.T) {
	c, _, _ := testConsole(t)

	quit, err := c.Execute("quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestConsole_EmptyAndUnknown(t *testing.T) {
	c, _, _ := testConsole(t)

	quit, err := c.Execute("")
	require.NoError(t, err)
	assert.False(t, quit)

	_, err = c.Execute("frobnicate")
	assert.Error(t, err)
}

func TestConsole_Send(t *testing.T) {
	c, out, s := testConsole(t)

	_, err := c.Execute("send a c 128")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sent 128 bytes a -> c")

	_, err = c.Execute("send a c many")
	assert.Error(t, err)
	_, err = c.Execute("send a")
	assert.Error(t, err)
	_, err = c.Execute("send a ghost 10")
	assert.Error(t, err)

	_, err = c.Execute("send a c 64 --quit-on-transmit")
	require.NoError(t, err)
	stepNet := s.Network()
	for i := 0; i < 8 && !stepNet.WatchTriggered(); i++ {
		stepNet.Step(0.5)
	}
	assert.True(t, stepNet.WatchTriggered())
}

func TestConsole_TopkAndToggle(t *testing.T) {
	c, out, s := testConsole(t)

	_, err := c.Execute("topk a 1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "a: top_k = 1")

	_, err = c.Execute("topk a zero")
	assert.Error(t, err)

	_, err = c.Execute("toggle b")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "b is now down")

	host, _ := s.Network().Host("b")
	assert.False(t, host.Router().Active())

	_, err = c.Execute("toggle b")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "b is now up")
}

func TestConsole_ViewAndPaths(t *testing.T) {
	c, out, _ := testConsole(t)

	_, err := c.Execute("view")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "a (0, 0) up")

	out.Reset()
	_, err = c.Execute("view a")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "a local view:")
	assert.Contains(t, out.String(), "neighbor b")

	out.Reset()
	_, err = c.Execute("drawpaths a c")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "a-b-c")

	_, err = c.Execute("clearpaths")
	require.NoError(t, err)
	assert.Empty(t, c.drawn)
}

func TestConsole_StatsAndScreenshot(t *testing.T) {
	c, out, _ := testConsole(t)

	_, err := c.Execute("stats")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "lsas:")

	out.Reset()
	_, err = c.Execute("screenshot shot.png")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rendering is not available")
}

func TestConsole_Load(t *testing.T) {
	c, out, s := testConsole(t)

	_, err := c.Execute("load testdata/topology.json")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "3 nodes, 2 links")
	assert.NotNil(t, s.Network())

	_, err = c.Execute("load testdata/nope.json")
	assert.Error(t, err)

	_, err = c.Execute("load")
	assert.Error(t, err)
}

func TestConsole_ViewLocal_EdgeListing(t *testing.T) {
	c, out, _ := testConsole(t)

	_, err := c.Execute("view b")
	require.NoError(t, err)
	lines := strings.Count(out.String(), "<->")
	assert.GreaterOrEqual(t, lines, 2, "b's local view must list both links")
}
