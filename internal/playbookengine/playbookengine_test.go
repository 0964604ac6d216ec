package playbookengine

import (
	"context"
	"testing"
	"time"

	"github.com/jbouey/chimera/internal/domain"
)

func TestTokenizeCommandAppliesPosixRules(t *testing.T) {
	got, err := TokenizeCommand(`systemctl restart "nginx.service"`)
	if err != nil {
		t.Fatalf("TokenizeCommand: %v", err)
	}
	want := []string{"systemctl", "restart", "nginx.service"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTokenizeCommandRejectsEmpty(t *testing.T) {
	if _, err := TokenizeCommand("   "); err == nil {
		t.Fatal("blank command should fail tokenization")
	}
}

func TestExecuteInvalidPlaybookSkipsAllSteps(t *testing.T) {
	e := NewEngine()
	playbook := domain.Playbook{
		Name: "",
		Steps: []domain.PlaybookStep{
			{Name: "check", Command: []string{"systemctl", "--version"}, Timeout: 5 * time.Second},
		},
	}
	result := e.Execute(context.Background(), playbook)
	if result.Status != ExecutionFailed {
		t.Fatalf("Status = %v, want Failed", result.Status)
	}
	for _, sr := range result.StepResults {
		if sr.Status != StepSkipped {
			t.Fatalf("step %q status = %v, want Skipped", sr.Step.Name, sr.Status)
		}
	}
}

func TestExecuteRunsStepsAndSucceeds(t *testing.T) {
	e := NewEngine()
	playbook := domain.Playbook{
		Name: "version-check",
		Steps: []domain.PlaybookStep{
			{Name: "check", Command: []string{"systemctl", "--version"}, Timeout: 5 * time.Second},
		},
	}
	result := e.Execute(context.Background(), playbook)
	if result.Status != ExecutionSucceeded {
		t.Fatalf("Status = %v, want Succeeded: %+v", result.Status, result.StepResults)
	}
	if result.SucceededSteps() != 1 {
		t.Fatalf("SucceededSteps = %d, want 1", result.SucceededSteps())
	}
}

func TestExecuteFailureSkipsRemainingSteps(t *testing.T) {
	e := NewEngine()
	playbook := domain.Playbook{
		Name: "fail-then-skip",
		Steps: []domain.PlaybookStep{
			{Name: "fail", Command: []string{"systemctl", "status", "chimera-no-such-unit-xyz"}, Timeout: 5 * time.Second},
			{Name: "never-runs", Command: []string{"systemctl", "--version"}, Timeout: 5 * time.Second},
		},
	}
	result := e.Execute(context.Background(), playbook)
	if result.Status != ExecutionFailed {
		t.Fatalf("Status = %v, want Failed", result.Status)
	}
	if len(result.StepResults) != 2 {
		t.Fatalf("StepResults = %d, want 2", len(result.StepResults))
	}
	if result.StepResults[1].Status != StepSkipped {
		t.Fatalf("second step status = %v, want Skipped", result.StepResults[1].Status)
	}
}

func TestExecuteRollsBackCompletedStepsOnFailure(t *testing.T) {
	e := NewEngine()
	playbook := domain.Playbook{
		Name: "rollback-on-failure",
		Steps: []domain.PlaybookStep{
			{Name: "setup", Command: []string{"systemctl", "--version"}, Timeout: 5 * time.Second},
			{Name: "fail", Command: []string{"systemctl", "status", "chimera-no-such-unit-xyz"}, RollbackCmd: []string{"systemctl", "--version"}, Timeout: 5 * time.Second},
		},
	}
	result := e.Execute(context.Background(), playbook)
	if result.Status != ExecutionRolledBack {
		t.Fatalf("Status = %v, want RolledBack", result.Status)
	}
	if result.StepResults[0].Status != StepRolledBack {
		t.Fatalf("first step status = %v, want RolledBack", result.StepResults[0].Status)
	}
}

func TestExecuteEnforcesStepTimeout(t *testing.T) {
	e := NewEngine()
	playbook := domain.Playbook{
		Name: "timeout",
		Steps: []domain.PlaybookStep{
			{Name: "slow", Command: []string{"systemctl", "--no-such-flag-that-hangs"}, Timeout: 1 * time.Nanosecond},
		},
	}
	result := e.Execute(context.Background(), playbook)
	if result.StepResults[0].Status != StepFailed {
		t.Fatalf("Status = %v, want Failed from near-zero timeout", result.StepResults[0].Status)
	}
}
