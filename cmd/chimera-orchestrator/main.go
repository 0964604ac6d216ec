// Chimera Orchestrator - fleet control plane
//
// Runs the autonomous healing loop against a configured fleet, tracks
// agent state in an in-memory registry, persists drift/playbook/SLO/
// healing history to Postgres, signs healing commands with Ed25519,
// and exposes a read-only HTTP status API with Prometheus metrics.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/ssh"

	"github.com/jbouey/chimera/adapters/nixcli"
	"github.com/jbouey/chimera/adapters/pgjournal"
	"github.com/jbouey/chimera/adapters/sshfleet"
	"github.com/jbouey/chimera/internal/analytics"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/config"
	"github.com/jbouey/chimera/internal/domain"
	"github.com/jbouey/chimera/internal/healingloop"
	"github.com/jbouey/chimera/internal/protocol"
	"github.com/jbouey/chimera/internal/registry"
	"github.com/jbouey/chimera/internal/statusapi"
	"github.com/jbouey/chimera/internal/workflow"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

var log = chimeralog.New("chimera-orchestrator")

func main() {
	configFile := flag.String("config", "", "Config file path (required)")
	flakePath := flag.String("flake", "", "Path to the flake the fleet should converge on")
	httpAddr := flag.String("http-addr", "", "Status API listen address (overrides config listen_addr)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chimera-orchestrator %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if *configFile == "" {
		log.Printf("FATAL: -config is required")
		os.Exit(1)
	}

	cfg, err := config.LoadOrchestratorConfig(*configFile)
	if err != nil {
		log.Printf("FATAL: failed to load config: %v", err)
		os.Exit(1)
	}
	listenAddr := cfg.ListenAddr
	if *httpAddr != "" {
		listenAddr = *httpAddr
	}

	log.Printf("chimera-orchestrator %s starting (listen=%s, nodes=%d)", Version, listenAddr, len(cfg.Nodes))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("shutdown signal received: %v", sig)
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("FATAL: failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, pgjournal.Schema); err != nil {
		log.Printf("FATAL: failed to apply schema: %v", err)
		os.Exit(1)
	}
	journal := pgjournal.New(pool)

	var signer *protocol.Signer
	if cfg.PrivateKeyHex != "" {
		signer, err = loadSigner(cfg.PrivateKeyHex)
		if err != nil {
			log.Printf("FATAL: failed to load signing key: %v", err)
			os.Exit(1)
		}
	} else {
		var pub string
		signer, pub, err = protocol.GenerateSigner()
		if err != nil {
			log.Printf("FATAL: failed to generate signing key: %v", err)
			os.Exit(1)
		}
		log.Printf("generated ephemeral signing key, public key: %s", pub)
	}

	nodes := make([]domain.Node, 0, len(cfg.Nodes))
	for _, raw := range cfg.Nodes {
		node, err := domain.ParseNode(raw)
		if err != nil {
			log.Printf("WARNING: skipping invalid node %q: %v", raw, err)
			continue
		}
		nodes = append(nodes, node)
	}

	reg := registry.New()
	store := analytics.NewStore()

	// A real deployment supplies a KeySource backed by an agent-key
	// store; until one is configured, SSH operations fail closed rather
	// than silently no-op.
	executor := sshfleet.NewExecutor(func(node domain.Node) (ssh.Signer, error) {
		return nil, fmt.Errorf("sshfleet: no key source configured for %s", node.Host)
	})
	nix := nixcli.New()

	loop := &healingloop.Loop{
		Nodes:    nodes,
		Executor: executor,
		ResolveExpected: func(ctx context.Context) (domain.Fingerprint, error) {
			if *flakePath == "" {
				return domain.Fingerprint{}, fmt.Errorf("chimera-orchestrator: no -flake path configured")
			}
			return nix.Build(ctx, *flakePath)
		},
		NewWorkflow: func() workflow.Workflow {
			return workflow.NewDeploymentWorkflow(nix, executor)
		},
		Interval: cfg.DriftScanInterval(),
	}

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("healing loop exited with error: %v", err)
		}
	}()

	// inProcessClient is what an in-process agent harness (or a future
	// transport adapter dialing in from the network side) reports
	// through: drift and healing acknowledgements flow into both the
	// live registry and the durable pgjournal history, and every
	// reported drift queues a signer-signed default remediation command
	// for the affected node to fetch.
	inProcessClient := registry.NewInProcessClient(reg, journal).WithSigner(signer)
	_ = inProcessClient

	srv := statusapi.NewServer(reg, store)
	httpServer := &http.Server{Addr: listenAddr, Handler: srv.Router}
	go func() {
		log.Printf("status API listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("status API server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	log.Printf("chimera-orchestrator shut down")
}

func loadSigner(privateKeyHex string) (*protocol.Signer, error) {
	key, err := decodeEd25519PrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return protocol.NewSigner(key), nil
}

func decodeEd25519PrivateKey(privateKeyHex string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("chimera-orchestrator: decode private_key_hex: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("chimera-orchestrator: private_key_hex has wrong size: got %d, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}
