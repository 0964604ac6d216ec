// Package playbookengine executes remediation playbooks step by step,
// enforcing the executable allowlist, per-step timeouts, and best-effort
// rollback on failure. No step ever runs through a shell interpreter.
package playbookengine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/shlex"

	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/domain"
)

var log = chimeralog.New("playbookengine")

// StepStatus is the execution status of an individual playbook step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepSucceeded
	StepFailed
	StepRolledBack
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "PENDING"
	case StepRunning:
		return "RUNNING"
	case StepSucceeded:
		return "SUCCEEDED"
	case StepFailed:
		return "FAILED"
	case StepRolledBack:
		return "ROLLED_BACK"
	case StepSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// ExecutionStatus is the overall status of a playbook run.
type ExecutionStatus int

const (
	ExecutionPending ExecutionStatus = iota
	ExecutionRunning
	ExecutionSucceeded
	ExecutionFailed
	ExecutionRolledBack
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionPending:
		return "PENDING"
	case ExecutionRunning:
		return "RUNNING"
	case ExecutionSucceeded:
		return "SUCCEEDED"
	case ExecutionFailed:
		return "FAILED"
	case ExecutionRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// StepResult is the outcome of executing (or skipping) one step.
type StepResult struct {
	Step        domain.PlaybookStep
	Status      StepStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Output      string
	Error       string
	ReturnCode  int
}

// ExecutionResult is the aggregate outcome of a full playbook run.
type ExecutionResult struct {
	Playbook    domain.Playbook
	Status      ExecutionStatus
	StepResults []StepResult
	StartedAt   time.Time
	CompletedAt time.Time
}

// SucceededSteps counts steps that completed successfully.
func (r ExecutionResult) SucceededSteps() int {
	n := 0
	for _, sr := range r.StepResults {
		if sr.Status == StepSucceeded {
			n++
		}
	}
	return n
}

// FailedSteps counts steps that failed.
func (r ExecutionResult) FailedSteps() int {
	n := 0
	for _, sr := range r.StepResults {
		if sr.Status == StepFailed {
			n++
		}
	}
	return n
}

// Engine executes playbooks.
type Engine struct{}

// NewEngine constructs a playbook Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Execute validates the playbook, then runs its steps sequentially.
func (e *Engine) Execute(ctx context.Context, playbook domain.Playbook) ExecutionResult {
	if err := playbook.Validate(); err != nil {
		now := time.Now().UTC()
		stepResults := make([]StepResult, len(playbook.Steps))
		for i, step := range playbook.Steps {
			stepResults[i] = StepResult{Step: step, Status: StepSkipped, Error: "playbook validation failed"}
		}
		return ExecutionResult{
			Playbook:    playbook,
			Status:      ExecutionFailed,
			StepResults: stepResults,
			StartedAt:   now,
			CompletedAt: now,
		}
	}

	result := ExecutionResult{
		Playbook:  playbook,
		Status:    ExecutionRunning,
		StartedAt: time.Now().UTC(),
	}

	var completedSteps []StepResult

	for i, step := range playbook.Steps {
		stepResult := e.executeStep(ctx, step)
		result.StepResults = append(result.StepResults, stepResult)

		switch stepResult.Status {
		case StepSucceeded:
			completedSteps = append(completedSteps, stepResult)
			continue
		case StepFailed:
			log.Printf("playbook %q step %q failed: %s", playbook.Name, step.Name, stepResult.Error)

			if len(step.RollbackCmd) > 0 && len(completedSteps) > 0 {
				log.Printf("rolling back %d completed steps", len(completedSteps))
				rollback(result.StepResults, completedSteps)
				result.Status = ExecutionRolledBack
			} else {
				result.Status = ExecutionFailed
			}

			for _, remaining := range playbook.Steps[i+1:] {
				result.StepResults = append(result.StepResults, StepResult{
					Step:   remaining,
					Status: StepSkipped,
					Error:  "skipped due to prior step failure",
				})
			}
			result.CompletedAt = time.Now().UTC()
			return result
		}
	}

	result.Status = ExecutionSucceeded
	result.CompletedAt = time.Now().UTC()
	return result
}

func (e *Engine) executeStep(ctx context.Context, step domain.PlaybookStep) StepResult {
	stepResult := StepResult{Step: step, Status: StepRunning, StartedAt: time.Now().UTC()}

	cmd := step.Command
	if len(cmd) == 0 {
		stepResult.Status = StepFailed
		stepResult.Error = "empty command"
		stepResult.CompletedAt = time.Now().UTC()
		return stepResult
	}
	if err := validateExecutable(cmd[0]); err != nil {
		stepResult.Status = StepFailed
		stepResult.Error = err.Error()
		stepResult.CompletedAt = time.Now().UTC()
		return stepResult
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	execCmd := exec.CommandContext(stepCtx, cmd[0], cmd[1:]...)
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	stepResult.Output = stdout.String()
	stepResult.Error = stderr.String()
	stepResult.CompletedAt = time.Now().UTC()

	if stepCtx.Err() == context.DeadlineExceeded {
		stepResult.Status = StepFailed
		stepResult.Error = fmt.Sprintf("timed out after %s", timeout)
		log.Printf("step %q timed out after %s", step.Name, timeout)
		return stepResult
	}

	if err != nil {
		stepResult.Status = StepFailed
		if exitErr, ok := err.(*exec.ExitError); ok {
			stepResult.ReturnCode = exitErr.ExitCode()
		}
		if stepResult.Error == "" {
			stepResult.Error = err.Error()
		}
		log.Printf("step %q failed: %s", step.Name, stepResult.Error)
		return stepResult
	}

	stepResult.Status = StepSucceeded
	return stepResult
}

// validateExecutable checks the command's basename against the
// allowlist. Steps reach Execute as argv slices (TokenizeCommand is a
// separate helper Execute does not call); this check enforces the
// security invariant that nothing not on AllowedCommands ever runs.
func validateExecutable(path string) error {
	executable := filepath.Base(path)
	if !domain.AllowedCommands[executable] {
		return fmt.Errorf("command %q not in allowlist", executable)
	}
	return nil
}

// TokenizeCommand applies POSIX shell tokenization rules to a raw
// command string, the form playbooks are typically authored in before
// being split into domain.PlaybookStep.Command argv slices.
func TokenizeCommand(raw string) ([]string, error) {
	parts, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("playbookengine: tokenize %q: %w", raw, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("playbookengine: empty command")
	}
	return parts, nil
}

// rollback marks previously completed steps ROLLED_BACK in reverse
// order. Rollback is best-effort marking only; running an inverse
// command is a future extension.
func rollback(stepResults []StepResult, completed []StepResult) {
	completedNames := make(map[string]bool, len(completed))
	for _, sr := range completed {
		completedNames[sr.Step.Name] = true
	}
	for i := len(stepResults) - 1; i >= 0; i-- {
		if completedNames[stepResults[i].Step.Name] && stepResults[i].Status == StepSucceeded {
			log.Printf("rolling back step: %s", stepResults[i].Step.Name)
			stepResults[i].Status = StepRolledBack
		}
	}
}
