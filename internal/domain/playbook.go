package domain

import (
	"fmt"
	"time"
)

// AllowedCommands is the fixed allowlist of executables a PlaybookStep may
// invoke. Playbooks never run through a shell interpreter, so this list
// names executables, not shell builtins.
var AllowedCommands = map[string]bool{
	"nix-env":       true,
	"nixos-rebuild": true,
	"systemctl":     true,
	"nix-build":     true,
	"nix-store":     true,
}

// PlaybookStep is one command in a Playbook, with an optional rollback
// command. The playbook engine does not run RollbackCmd; when a step
// that carries one fails, the engine marks the earlier succeeded steps
// ROLLED_BACK in reverse order.
type PlaybookStep struct {
	Name        string
	Command     []string
	RollbackCmd []string
	Timeout     time.Duration
}

// Validate checks that the step's command (and rollback command, if
// present) name an allowlisted executable and are non-empty.
func (s PlaybookStep) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("playbook step: name must not be empty")
	}
	if err := validateCommand(s.Command); err != nil {
		return fmt.Errorf("playbook step %q: command: %w", s.Name, err)
	}
	if len(s.RollbackCmd) > 0 {
		if err := validateCommand(s.RollbackCmd); err != nil {
			return fmt.Errorf("playbook step %q: rollback command: %w", s.Name, err)
		}
	}
	return nil
}

func validateCommand(cmd []string) error {
	if len(cmd) == 0 {
		return fmt.Errorf("must not be empty")
	}
	if !AllowedCommands[cmd[0]] {
		return fmt.Errorf("executable %q is not allowlisted", cmd[0])
	}
	return nil
}

// Playbook is an ordered sequence of steps executed by the playbook
// engine, with best-effort reverse-order rollback on abort.
type Playbook struct {
	Name  string
	Steps []PlaybookStep
}

// Validate checks the playbook's name and every step.
func (p Playbook) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("playbook: name must not be empty")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("playbook %q: must have at least one step", p.Name)
	}
	for _, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("playbook %q: %w", p.Name, err)
		}
	}
	return nil
}
