// Package protocol implements Ed25519 signing and verification of
// orchestrator-issued healing commands, and the canonical JSON payload
// construction both sides must agree on to sign/verify the same bytes.
package protocol

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jbouey/chimera/internal/capability"
)

// Signer holds an orchestrator's Ed25519 private key and signs healing
// command payloads with it.
type Signer struct {
	privateKey ed25519.PrivateKey
}

// NewSigner constructs a Signer from a raw Ed25519 private key.
func NewSigner(privateKey ed25519.PrivateKey) *Signer {
	return &Signer{privateKey: privateKey}
}

// GenerateSigner creates a fresh Ed25519 keypair and returns a Signer
// plus the corresponding hex-encoded public key, suitable for
// distributing to agents out of band.
func GenerateSigner() (*Signer, string, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, "", fmt.Errorf("protocol: generate ed25519 keypair: %w", err)
	}
	return NewSigner(priv), hex.EncodeToString(pub), nil
}

// Sign returns the hex-encoded Ed25519 signature over payload.
func (s *Signer) Sign(payload string) string {
	sig := ed25519.Sign(s.privateKey, []byte(payload))
	return hex.EncodeToString(sig)
}

// Verifier holds an agent's view of the orchestrator's Ed25519 public
// key and verifies signed payloads against it.
type Verifier struct {
	mu        sync.RWMutex
	publicKey ed25519.PublicKey
	keyHex    string
}

// NewVerifier constructs a Verifier. If publicKeyHex is empty,
// verification is deferred until SetPublicKey is called — mirroring
// the agent's "learn the key on first checkin" bootstrap.
func NewVerifier(publicKeyHex string) *Verifier {
	v := &Verifier{}
	if publicKeyHex != "" {
		_ = v.SetPublicKey(publicKeyHex)
	}
	return v
}

// SetPublicKey sets or updates the orchestrator's Ed25519 public key.
func (v *Verifier) SetPublicKey(hexKey string) error {
	pubBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return fmt.Errorf("protocol: decode public key hex: %w", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("protocol: invalid public key size: got %d, want %d", len(pubBytes), ed25519.PublicKeySize)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publicKey = ed25519.PublicKey(pubBytes)
	v.keyHex = hexKey
	return nil
}

// HasKey reports whether a public key has been set.
func (v *Verifier) HasKey() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.publicKey != nil
}

// VerifyCommand checks the Ed25519 signature on a signed healing
// command payload. If no public key has been configured, verification
// is skipped and the command is accepted — an explicit "nil verifier"
// posture for deployments that have not yet bootstrapped signing.
func (v *Verifier) VerifyCommand(signedPayload, signatureHex string) error {
	v.mu.RLock()
	pk := v.publicKey
	v.mu.RUnlock()

	if pk == nil {
		return nil
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("protocol: decode signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("protocol: invalid signature size: got %d, want %d", len(sig), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pk, []byte(signedPayload), sig) {
		return fmt.Errorf("protocol: ed25519 signature verification failed")
	}
	return nil
}

// BuildSignedPayload renders fields as canonical JSON (object keys
// sorted) so both the signer and verifier always sign/verify
// byte-identical input.
func BuildSignedPayload(fields map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]byte, 0, 256)
	out = append(out, '{')
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',', ' ')
		}
		keyJSON, _ := json.Marshal(k)
		out = append(out, keyJSON...)
		out = append(out, ':', ' ')
		valJSON, err := json.Marshal(fields[k])
		if err != nil {
			return "", fmt.Errorf("protocol: marshal field %q: %w", k, err)
		}
		out = append(out, valJSON...)
	}
	out = append(out, '}')
	return string(out), nil
}

// HealingCommandPayload renders the fields of a HealingCommand that
// are covered by its signature, in the canonical form both the signer
// (orchestrator side) and the verifier (agent side) must agree on.
func HealingCommandPayload(cmd capability.HealingCommand) (string, error) {
	return BuildSignedPayload(map[string]interface{}{
		"id":        cmd.ID,
		"node_host": cmd.NodeHost,
		"command":   cmd.Command,
		"issued_at": cmd.IssuedAt.UnixNano(),
	})
}
