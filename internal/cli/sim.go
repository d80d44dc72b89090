// Package cli implements the warp subcommands.
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/okdaichi/warp/internal/sim"
	"github.com/okdaichi/warp/internal/warp"
	"github.com/okdaichi/warp/observability"
)

type simConfig struct {
	TopologyFile string
	MetricsAddr  string
	SimConfig    sim.Config
	Observe      observability.Config
}

// RunSim starts the WARP mesh simulator with an interactive console.
func RunSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	var configFile = fs.String("config", "config.sim.yaml", "path to config file")
	var topoFile = fs.String("topology", "", "topology JSON file (overrides config)")
	fs.Parse(args)

	cfg, err := loadSimConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *topoFile != "" {
		cfg.TopologyFile = *topoFile
	}
	if cfg.TopologyFile == "" {
		return fmt.Errorf("no topology file configured (set sim.topology_file or pass -topology)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := observability.Setup(ctx, cfg.Observe); err != nil {
		return fmt.Errorf("failed to set up observability: %w", err)
	}
	defer observability.Shutdown(context.Background())

	graph, positions, err := sim.LoadTopologyFile(cfg.TopologyFile)
	if err != nil {
		return fmt.Errorf("failed to load topology: %w", err)
	}

	network := sim.NewNetwork(graph, positions, cfg.SimConfig)
	simulation := sim.NewSimulation(network, cfg.SimConfig, os.Stdout)

	slog.Info("simulation starting",
		"topology", cfg.TopologyFile,
		"nodes", len(graph.Vertices()),
		"links", len(graph.Links()),
		"tick", cfg.SimConfig.TickSeconds)

	// The input reader runs on its own goroutine and hands complete lines
	// to the simulation loop over a channel.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			simulation.Enqueue(scanner.Text())
		}
	}()

	var httpServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/graph", sim.GraphHandlerFunc(simulation))
		mux.HandleFunc("/health", sim.HealthHandlerFunc(simulation))
		httpServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		go func() {
			log.Printf("HTTP server starting on %s", cfg.MetricsAddr)
			log.Println("  /metrics - Prometheus metrics")
			log.Println("  /graph   - topology (?node=<name> for a local view)")
			log.Println("  /health  - run counters")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	err = simulation.Run(ctx)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			log.Printf("Error shutting down HTTP server: %v", serr)
		}
	}

	slog.Info("simulation stopped")
	return err
}

func loadSimConfig(filename string) (*simConfig, error) {
	type yamlConfig struct {
		Sim struct {
			TopologyFile       string `yaml:"topology_file"`
			TickMillis         int    `yaml:"tick_ms"`
			QueueCapacityBytes int    `yaml:"queue_capacity_bytes"`
			Seed               int64  `yaml:"seed"`
			MetricsAddr        string `yaml:"metrics_addr"`
		} `yaml:"sim"`
		Warp struct {
			TopK                int     `yaml:"top_k"`
			HelloIntervalSec    float64 `yaml:"hello_interval_sec"`
			HelloBroadcastEvery int     `yaml:"hello_broadcast_every"`
			NeighborTimeoutSec  float64 `yaml:"neighbor_timeout_sec"`
		} `yaml:"warp"`
		Observability struct {
			Service   string `yaml:"service"`
			TraceAddr string `yaml:"trace_addr"`
			LogAddr   string `yaml:"log_addr"`
			Metrics   bool   `yaml:"metrics"`
		} `yaml:"observability"`
	}

	var ymlConfig yamlConfig

	file, err := os.Open(filename)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&ymlConfig); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only; the topology can still come from the flag.
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	// Set defaults
	if ymlConfig.Sim.TickMillis == 0 {
		ymlConfig.Sim.TickMillis = 100
	}
	if ymlConfig.Observability.Service == "" {
		ymlConfig.Observability.Service = "warp-sim"
	}

	return &simConfig{
		TopologyFile: ymlConfig.Sim.TopologyFile,
		MetricsAddr:  ymlConfig.Sim.MetricsAddr,
		SimConfig: sim.Config{
			TickSeconds:        float64(ymlConfig.Sim.TickMillis) / 1000,
			QueueCapacityBytes: ymlConfig.Sim.QueueCapacityBytes,
			Seed:               ymlConfig.Sim.Seed,
			Router: warp.Config{
				TopK:                ymlConfig.Warp.TopK,
				HelloInterval:       ymlConfig.Warp.HelloIntervalSec,
				HelloBroadcastEvery: ymlConfig.Warp.HelloBroadcastEvery,
				NeighborTimeout:     ymlConfig.Warp.NeighborTimeoutSec,
			},
		},
		Observe: observability.Config{
			Service:   ymlConfig.Observability.Service,
			TraceAddr: ymlConfig.Observability.TraceAddr,
			LogAddr:   ymlConfig.Observability.LogAddr,
			Metrics:   ymlConfig.Observability.Metrics,
		},
	}, nil
}
