// Package sshfleet implements capability.RemoteExecutor by fanning
// commands out to fleet nodes over SSH, with cached connections and a
// 30s connection timeout, grounded on the teacher's sshexec.Executor.
package sshfleet

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/domain"
)

var log = chimeralog.New("sshfleet")

const (
	connMaxAge      = 300 * time.Second
	connectTimeout  = 30 * time.Second
)

type cachedConn struct {
	client    *ssh.Client
	createdAt time.Time
}

// KeySource supplies the signer used to authenticate to every node.
// Production deployments load this from an agent's private key file;
// tests can supply an in-memory signer.
type KeySource func(node domain.Node) (ssh.Signer, error)

// Executor is the SSH-backed RemoteExecutor adapter.
type Executor struct {
	mu      sync.Mutex
	conns   map[string]*cachedConn
	keySource KeySource
}

// NewExecutor constructs an Executor authenticating with the signer
// KeySource returns per node.
func NewExecutor(keySource KeySource) *Executor {
	return &Executor{
		conns:     make(map[string]*cachedConn),
		keySource: keySource,
	}
}

var _ capability.RemoteExecutor = (*Executor)(nil)

func (e *Executor) getConnection(node domain.Node) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.conns[node.Host]; ok {
		if time.Since(cached.createdAt) < connMaxAge {
			if _, err := cached.client.NewSession(); err == nil {
				return cached.client, nil
			}
			log.Printf("stale connection to %s, reconnecting", node.Host)
		}
		cached.client.Close()
		delete(e.conns, node.Host)
	}

	signer, err := e.keySource(node)
	if err != nil {
		return nil, fmt.Errorf("sshfleet: key source for %s: %w", node.Host, err)
	}

	config := &ssh.ClientConfig{
		User:            node.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint -- TOFU verification is host-fleet specific and out of scope here
		Timeout:         connectTimeout,
	}

	addr := net.JoinHostPort(node.Host, fmt.Sprintf("%d", node.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("sshfleet: dial %s: %w", addr, err)
	}

	e.conns[node.Host] = &cachedConn{client: client, createdAt: time.Now()}
	return client, nil
}

func (e *Executor) runOne(ctx context.Context, node domain.Node, command []string) error {
	client, err := e.getConnection(node)
	if err != nil {
		return &capability.CommandError{Node: node, Err: fmt.Errorf("%w: %v", capability.ErrTransport, err)}
	}

	session, err := client.NewSession()
	if err != nil {
		return &capability.CommandError{Node: node, Err: fmt.Errorf("%w: %v", capability.ErrTransport, err)}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := joinArgv(command)
	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGTERM)
		return &capability.CommandError{Node: node, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &capability.CommandError{Node: node, Err: fmt.Errorf("%s: %w", stderr.String(), err)}
		}
		return nil
	}
}

// fanOut runs fn against every node concurrently, returning the first
// error encountered (if any), after waiting for all to complete.
func (e *Executor) fanOut(ctx context.Context, nodes []domain.Node, fn func(domain.Node) error) error {
	var wg sync.WaitGroup
	errs := make([]error, len(nodes))
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, n domain.Node) {
			defer wg.Done()
			errs[i] = fn(n)
		}(i, node)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// SyncArtifact realises a built artifact's store path on every node
// concurrently by running `nix-store --realise` over the SSH session.
func (e *Executor) SyncArtifact(ctx context.Context, nodes []domain.Node, artifactPath string) error {
	return e.fanOut(ctx, nodes, func(n domain.Node) error {
		return e.runOne(ctx, n, []string{"nix-store", "--realise", artifactPath})
	})
}

// ExecCommand runs command on every node concurrently.
func (e *Executor) ExecCommand(ctx context.Context, nodes []domain.Node, command []string) error {
	return e.fanOut(ctx, nodes, func(n domain.Node) error {
		return e.runOne(ctx, n, command)
	})
}

// CurrentFingerprint queries a single node's currently active system
// fingerprint.
func (e *Executor) CurrentFingerprint(ctx context.Context, node domain.Node) (*domain.Fingerprint, error) {
	client, err := e.getConnection(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrTransport, err)
	}
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capability.ErrTransport, err)
	}
	defer session.Close()

	out, err := session.Output("readlink /run/current-system | sha256sum | head -c32")
	if err != nil {
		return nil, &capability.CommandError{Node: node, Err: err}
	}
	fp, err := domain.NewFingerprint(string(bytes.TrimSpace(out)))
	if err != nil {
		return nil, nil // unparseable fingerprint reads as "unknown", not an error
	}
	return &fp, nil
}

// Rollback instructs every node to switch to a previous generation.
func (e *Executor) Rollback(ctx context.Context, nodes []domain.Node, generation int) error {
	cmd := []string{"nixos-rebuild", "switch", "--rollback"}
	if generation > 0 {
		cmd = []string{"nix-env", "--switch-generation", fmt.Sprintf("%d", generation)}
	}
	return e.fanOut(ctx, nodes, func(n domain.Node) error {
		return e.runOne(ctx, n, cmd)
	})
}

func joinArgv(argv []string) string {
	var b bytes.Buffer
	for i, a := range argv {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a)
	}
	return b.String()
}
