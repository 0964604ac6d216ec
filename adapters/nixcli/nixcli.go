// Package nixcli implements capability.Nix by shelling out to the nix
// and nix-instantiate binaries, grounded on the teacher's
// handleNixOSRebuild order handler.
package nixcli

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/domain"
)

var log = chimeralog.New("nixcli")

// Nix shells out to the local nix toolchain to build and instantiate
// configurations.
type Nix struct {
	binaryPath string
}

// New constructs a Nix adapter using the nix binary found on PATH.
func New() *Nix {
	return &Nix{binaryPath: "nix"}
}

var _ capability.Nix = (*Nix)(nil)

// Build runs `nix build` against path and derives a Fingerprint from
// the resulting store path's hash.
func (n *Nix) Build(ctx context.Context, path string) (domain.Fingerprint, error) {
	if _, err := exec.LookPath(n.binaryPath); err != nil {
		return domain.Fingerprint{}, capability.ErrNotInstalled
	}

	cmd := exec.CommandContext(ctx, n.binaryPath, "build", "--no-link", "--print-out-paths", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Printf("build %q failed: %v: %s", path, err, stderr.String())
		return domain.Fingerprint{}, fmt.Errorf("%w: %s", capability.ErrBuildFailed, strings.TrimSpace(stderr.String()))
	}

	storePath := strings.TrimSpace(stdout.String())
	if storePath == "" {
		return domain.Fingerprint{}, fmt.Errorf("%w: nix build produced no output path", capability.ErrBuildFailed)
	}

	sum := sha256.Sum256([]byte(storePath))
	return domain.NewFingerprint(hex.EncodeToString(sum[:])[:32])
}

// Instantiate runs `nix-instantiate` against path and returns the
// resulting derivation path.
func (n *Nix) Instantiate(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("nix-instantiate"); err != nil {
		return "", capability.ErrNotInstalled
	}
	cmd := exec.CommandContext(ctx, "nix-instantiate", path)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %v", capability.ErrBuildFailed, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Shell constructs (but does not run) a `nix shell <path> --command ...`
// invocation wrapper, returning the argv elements joined with single
// spaces (no shell quoting is applied) for callers that need to hand it
// to a remote executor.
func (n *Nix) Shell(ctx context.Context, path string, command []string) (string, error) {
	if len(command) == 0 {
		return "", errors.New("nixcli: command must not be empty")
	}
	argv := append([]string{"nix", "shell", path, "--command"}, command...)
	return strings.Join(argv, " "), nil
}
