// Chimera Agent - fleet node runtime
//
// Runs on each managed node. Checks heartbeats and drift, spools every
// report to a local SQLite queue through a loopback client (this binary
// has no network transport to the orchestrator), and takes healing
// commands from an on-disk drop file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jbouey/chimera/adapters/nixcli"
	"github.com/jbouey/chimera/adapters/offlinequeue"
	"github.com/jbouey/chimera/internal/agentrt"
	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/config"
	"github.com/jbouey/chimera/internal/domain"
	"github.com/jbouey/chimera/internal/protocol"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

var log = chimeralog.New("chimera-agent")

func main() {
	configFile := flag.String("config", "", "Config file path (optional; defaults are used when absent)")
	nodeFlag := flag.String("node", "", "This node's connection string, user@host[:port] (overrides config)")
	flakePath := flag.String("flake", "", "Path to the flake this node should converge on")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chimera-agent %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg := config.LoadAgentConfig(*configFile)
	log.Printf("chimera-agent %s starting (node_id=%s)", Version, cfg.NodeID)

	node := domain.Node{Host: cfg.NodeID, User: "root", Port: 22}
	if *nodeFlag != "" {
		parsed, err := domain.ParseNode(*nodeFlag)
		if err != nil {
			log.Printf("FATAL: invalid -node value: %v", err)
			os.Exit(1)
		}
		node = parsed
	}

	queue, err := offlinequeue.New(cfg.DataDir)
	if err != nil {
		log.Printf("WARNING: offline queue unavailable, events will be dropped on transport failure: %v", err)
	}
	if queue != nil {
		defer queue.Close()
	}

	verifier := protocol.NewVerifier(cfg.PublicKeyHex)

	nix := nixcli.New()

	resolveExpected := func(ctx context.Context) (domain.Fingerprint, error) {
		if *flakePath == "" {
			return domain.Fingerprint{}, fmt.Errorf("chimera-agent: no -flake path configured")
		}
		return nix.Build(ctx, *flakePath)
	}
	resolveCurrent := func(ctx context.Context) (*domain.Fingerprint, error) {
		out, err := os.ReadFile("/run/current-system-fingerprint")
		if err != nil {
			return nil, nil
		}
		fp, err := domain.NewFingerprint(string(out))
		if err != nil {
			return nil, nil
		}
		return &fp, nil
	}

	agentCfg := agentrt.Config{
		NodeID:             cfg.NodeID,
		Node:               node,
		HeartbeatInterval:  cfg.HeartbeatInterval(),
		DriftCheckInterval: cfg.DriftCheckInterval(),
		AutoHeal:           cfg.AutoHeal,
	}

	client := &loopbackClient{queue: queue}
	agent := agentrt.NewAgent(agentCfg, client, resolveExpected, resolveCurrent).WithVerifier(verifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("shutdown signal received: %v", sig)
		cancel()
	}()

	var wg sync.WaitGroup
	for _, task := range []func(context.Context){
		agent.RunHeartbeat,
		agent.RunDriftCheck,
		agent.RunHealingPull,
		runHealingFilePoll(agent),
	} {
		wg.Add(1)
		go func(fn func(context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(task)
	}

	wg.Wait()
	log.Printf("chimera-agent shut down")
}

// runHealingFilePoll wraps CheckOnDiskHealingFile in the same
// cancellable-sleep shape as the agent's other periodic tasks, polling
// the drop-file transport every five seconds.
func runHealingFilePoll(agent *agentrt.Agent) func(context.Context) {
	return func(ctx context.Context) {
		for {
			agent.CheckOnDiskHealingFile(ctx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// loopbackClient satisfies capability.OrchestratorClient by spooling
// unsent reports to the offline queue; a real deployment replaces this
// with an HTTP or gRPC client dialing the orchestrator. It never has a
// pending healing command of its own, since that transport is the
// on-disk drop file checked by CheckOnDiskHealingFile.
type loopbackClient struct {
	queue *offlinequeue.Queue
}

var _ capability.OrchestratorClient = (*loopbackClient)(nil)

func (c *loopbackClient) ReportHealth(ctx context.Context, health capability.NodeHealth) error {
	if c.queue == nil {
		return nil
	}
	return c.queue.Enqueue(capability.Event{
		Type:        "NodeHealthReported",
		AggregateID: health.Node.Host,
		OccurredAt:  health.ReportedAt,
		Payload:     health,
	})
}

func (c *loopbackClient) ReportDrift(ctx context.Context, drift capability.DriftPayload) error {
	if c.queue == nil {
		return nil
	}
	return c.queue.Enqueue(capability.Event{
		Type:        "DriftReported",
		AggregateID: drift.Node.Host,
		OccurredAt:  time.Now().UTC(),
		Payload:     drift,
	})
}

func (c *loopbackClient) FetchHealingCommand(ctx context.Context, node domain.Node) (*capability.HealingCommand, error) {
	return nil, nil
}

func (c *loopbackClient) AcknowledgeHealing(ctx context.Context, commandID string, success bool, output string) error {
	log.Printf("healing command %s acknowledged success=%v output=%q", commandID, success, output)
	return nil
}
