// Package healingloop implements Chimera's autonomous healing loop: it
// resolves the expected fingerprint once, then repeatedly scans the
// fleet for drift and deploys remediation to the drifted subset.
package healingloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/domain"
	"github.com/jbouey/chimera/internal/workflow"
)

var log = chimeralog.New("healingloop")

// FingerprintBuilder resolves the expected fingerprint once at loop
// startup, usually by invoking an external builder.
type FingerprintBuilder func(ctx context.Context) (domain.Fingerprint, error)

// WorkflowFactory builds the deployment workflow executed against the
// drifted subset of nodes each cycle.
type WorkflowFactory func() workflow.Workflow

// Loop is the autonomous healing loop.
type Loop struct {
	Nodes            []domain.Node
	Executor         capability.RemoteExecutor
	ResolveExpected  FingerprintBuilder
	NewWorkflow      WorkflowFactory
	Interval         time.Duration
	RunOnce          bool
}

// Run resolves the expected fingerprint, then loops: scan, heal
// drifted nodes, sleep, repeat. It honors ctx cancellation at the next
// suspension point — the in-flight scan always completes before the
// loop exits.
func (l *Loop) Run(ctx context.Context) error {
	expected, err := l.ResolveExpected(ctx)
	if err != nil {
		log.Printf("failed to resolve expected fingerprint: %v", err)
		return fmt.Errorf("healingloop: resolve expected fingerprint: %w", err)
	}

	for {
		drifted, err := l.scan(ctx, expected)
		if err != nil {
			log.Printf("scan failed: %v", err)
		} else if len(drifted) > 0 {
			l.heal(ctx, drifted, expected)
		}

		if l.RunOnce {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.Interval):
		}
	}
}

func (l *Loop) scan(ctx context.Context, expected domain.Fingerprint) ([]domain.Node, error) {
	var drifted []domain.Node
	for _, node := range l.Nodes {
		actual, err := l.Executor.CurrentFingerprint(ctx, node)
		if err != nil {
			if !errors.Is(err, capability.ErrTransport) {
				log.Printf("failed to query fingerprint for %s: %v", node, err)
				continue
			}
			log.Printf("node %s unreachable, treating as drifted: %v", node, err)
			actual = nil
		}
		var report domain.CongruenceReport
		if actual != nil && actual.Equal(expected) {
			report = domain.CongruentReport(node, expected)
		} else {
			report = domain.DriftedReport(node, expected, actual, "fingerprint mismatch")
		}
		if !report.IsCongruent {
			drifted = append(drifted, node)
		}
	}
	return drifted, nil
}

func (l *Loop) heal(ctx context.Context, drifted []domain.Node, expected domain.Fingerprint) {
	wf := l.NewWorkflow()
	env := map[string]interface{}{
		"nodes":   drifted,
		"path":    expected.String(),
		"command": []string{"systemctl", "restart", "chimera-managed.target"},
	}
	if _, err := wf.Run(ctx, env); err != nil {
		log.Printf("healing workflow failed for %d nodes: %v", len(drifted), err)
	}
}
