package workflow

import (
	"context"
	"fmt"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/domain"
)

// NewDeploymentWorkflow builds the canonical four-step deployment
// workflow: build (no deps), sync and session (both depend on build, run
// in parallel), execute (depends on sync and session). All four steps
// are critical. env is expected to carry "path" (build target), "nodes"
// ([]domain.Node), and "command" ([]string) keys.
func NewDeploymentWorkflow(nix capability.Nix, executor capability.RemoteExecutor) Workflow {
	return Workflow{
		Steps: []Step{
			{
				Name:       "build",
				IsCritical: true,
				Execute: func(ctx context.Context, env map[string]interface{}, completed map[string]interface{}) (interface{}, error) {
					path, _ := env["path"].(string)
					fp, err := nix.Build(ctx, path)
					if err != nil {
						return nil, fmt.Errorf("build: %w", err)
					}
					return fp, nil
				},
			},
			{
				Name:       "sync",
				DependsOn:  []string{"build"},
				IsCritical: true,
				Execute: func(ctx context.Context, env map[string]interface{}, completed map[string]interface{}) (interface{}, error) {
					nodes, _ := env["nodes"].([]domain.Node)
					path, _ := env["path"].(string)
					if err := executor.SyncArtifact(ctx, nodes, path); err != nil {
						return nil, fmt.Errorf("sync: %w", err)
					}
					return true, nil
				},
			},
			{
				Name:       "session",
				DependsOn:  []string{"build"},
				IsCritical: true,
				Execute: func(ctx context.Context, env map[string]interface{}, completed map[string]interface{}) (interface{}, error) {
					sessionID, _ := env["session_id"].(string)
					if sessionID == "" {
						sessionID = "deployment-session"
					}
					return sessionID, nil
				},
			},
			{
				Name:       "execute",
				DependsOn:  []string{"sync", "session"},
				IsCritical: true,
				Execute: func(ctx context.Context, env map[string]interface{}, completed map[string]interface{}) (interface{}, error) {
					nodes, _ := env["nodes"].([]domain.Node)
					command, _ := env["command"].([]string)
					if err := executor.ExecCommand(ctx, nodes, command); err != nil {
						return nil, fmt.Errorf("execute: %w", err)
					}
					return true, nil
				},
			},
		},
	}
}
