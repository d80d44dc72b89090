package sim

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okdaichi/warp/internal/topology"
)

// Console executes the interactive simulator commands. It runs on the
// simulation goroutine: the driver drains queued lines between ticks, so
// commands never race with Step.
type Console struct {
	sim *Simulation
	out io.Writer

	// drawn remembers the last drawpaths selection for the view command.
	drawn []topology.Path
}

// NewConsole creates a console writing to out.
func NewConsole(sim *Simulation, out io.Writer) *Console {
	return &Console{sim: sim, out: out}
}

// Printf writes formatted output to the console.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Execute runs one command line. It returns true when the simulator should
// quit. Argument errors are returned, not fatal.
func (c *Console) Execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "send":
		return false, c.send(args)
	case "topk":
		return false, c.topk(args)
	case "toggle":
		return false, c.toggle(args)
	case "view":
		return false, c.view(args)
	case "drawpaths":
		return false, c.drawpaths(args)
	case "clearpaths":
		c.drawn = nil
		return false, nil
	case "load":
		return false, c.load(args)
	case "screenshot":
		c.Printf("screenshot: rendering is not available in this build\n")
		return false, nil
	case "stats":
		c.stats()
		return false, nil
	case "help":
		c.help()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *Console) send(args []string) error {
	quitOnTransmit := false
	var pos []string
	for _, a := range args {
		if a == "--quit-on-transmit" {
			quitOnTransmit = true
			continue
		}
		pos = append(pos, a)
	}
	if len(pos) != 3 {
		return fmt.Errorf("usage: send <src> <dst> <bytes> [--quit-on-transmit]")
	}
	bytes, err := strconv.Atoi(pos[2])
	if err != nil || bytes <= 0 {
		return fmt.Errorf("invalid byte count %q", pos[2])
	}

	net := c.sim.Network()
	id, err := net.Send(pos[0], pos[1], bytes)
	if err != nil {
		return err
	}
	if quitOnTransmit {
		net.SetWatch(id)
	}
	c.Printf("sent %d bytes %s -> %s (%s)\n", bytes, pos[0], pos[1], id)
	return nil
}

func (c *Console) topk(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: topk <node> <k>")
	}
	k, err := strconv.Atoi(args[1])
	if err != nil || k <= 0 {
		return fmt.Errorf("invalid k %q", args[1])
	}
	if err := c.sim.Network().SetTopK(args[0], k); err != nil {
		return err
	}
	c.Printf("%s: top_k = %d\n", args[0], k)
	return nil
}

func (c *Console) toggle(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: toggle <node>")
	}
	active, err := c.sim.Network().Toggle(args[0])
	if err != nil {
		return err
	}
	state := "down"
	if active {
		state = "up"
	}
	c.Printf("%s is now %s\n", args[0], state)
	return nil
}

func (c *Console) view(args []string) error {
	net := c.sim.Network()
	if len(args) == 0 {
		for _, name := range net.Nodes() {
			host, _ := net.Host(name)
			pos := net.Position(host.Node())
			state := "up"
			if !host.Router().Active() {
				state = "down"
			}
			c.Printf("%s (%.0f, %.0f) %s\n", name, pos.X, pos.Y, state)
		}
		for _, p := range c.drawn {
			c.Printf("drawn: %s (weight %g)\n", FormatPath(p), p.Weight)
		}
		return nil
	}

	host, ok := net.Host(args[0])
	if !ok {
		return fmt.Errorf("unknown node %q", args[0])
	}
	db := host.Router().DB()
	c.Printf("%s local view:\n", args[0])
	for _, v := range db.Graph().Vertices() {
		for _, a := range db.Graph().Neighbors(v) {
			if a.Peer.Name < v.Name {
				continue // each undirected edge once
			}
			c.Printf("  %s <-> %s  bw=%g  eff=%g\n",
				v.Name, a.Peer.Name, a.Link.Bandwidth, a.Link.EffectiveBandwidth())
		}
	}
	for _, nb := range db.DirectNeighbors() {
		c.Printf("  neighbor %s heard %.1fs ago\n", nb.Name, db.NeighborElapsed(nb))
	}
	return nil
}

func (c *Console) drawpaths(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: drawpaths <src> <dst>")
	}
	paths, err := c.sim.Network().CandidatePaths(args[0], args[1])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		c.Printf("no paths from %s to %s\n", args[0], args[1])
		return nil
	}
	c.drawn = paths
	for i, p := range paths {
		c.Printf("%d: %s (weight %g)\n", i+1, FormatPath(p), p.Weight)
	}
	return nil
}

func (c *Console) load(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <file>")
	}
	graph, positions, err := LoadTopologyFile(args[0])
	if err != nil {
		return err
	}
	c.sim.Reset(NewNetwork(graph, positions, c.sim.Config()))
	c.drawn = nil
	c.Printf("loaded %s: %d nodes, %d links\n",
		args[0], len(graph.Vertices()), len(graph.Links()))
	return nil
}

func (c *Console) stats() {
	s := c.sim.Network().Snapshot()
	c.Printf("time: %.1fs  ticks: %d\n", c.sim.Network().Now(), s.Ticks)
	c.Printf("datagrams: %d delivered, %d dropped\n", s.DatagramsDelivered, s.DatagramsDropped)
	c.Printf("lsas: %d sent, %d received, %d stale\n", s.LsasSent, s.LsasReceived, s.LsasStale)
	c.Printf("paths: %d accepted, %d pruned\n", s.PathsAccepted, s.PathsPruned)
}

func (c *Console) help() {
	c.Printf("commands:\n")
	c.Printf("  send <src> <dst> <bytes> [--quit-on-transmit]\n")
	c.Printf("  topk <node> <k>\n")
	c.Printf("  toggle <node>\n")
	c.Printf("  view [node]\n")
	c.Printf("  drawpaths <src> <dst>\n")
	c.Printf("  clearpaths\n")
	c.Printf("  load <file>\n")
	c.Printf("  screenshot [file]\n")
	c.Printf("  stats\n")
	c.Printf("  quit\n")
}
