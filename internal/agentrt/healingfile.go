//go:build !windows

package agentrt

import (
	"fmt"
	"os"
	"syscall"
)

// HealingDir is the on-disk directory the agent polls for
// orchestrator-delivered healing commands, as an alternative to the
// pull-transport OrchestratorClient.fetch_healing_command.
const HealingDir = "/var/lib/chimera/healing"

// validateHealingFile enforces the two invariants the agent must check
// before trusting an on-disk healing command: the file must be owned by
// uid 0, and must not be world-writable.
func validateHealingFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("agentrt: cannot stat ownership of %s", path)
	}
	if stat.Uid != 0 {
		return fmt.Errorf("agentrt: healing file %s not owned by root (owner uid=%d)", path, stat.Uid)
	}
	if info.Mode()&0002 != 0 {
		return fmt.Errorf("agentrt: healing file %s is world-writable", path)
	}
	return nil
}
