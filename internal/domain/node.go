// Package domain implements Chimera's value types and aggregates: Node,
// Fingerprint, SessionId, CongruenceReport, Deployment, Playbook, SLO, and
// Policy.
package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Node is an immutable (host, user, port) tuple identifying a fleet member.
type Node struct {
	Host string
	User string
	Port int
}

// ParseNode parses a "user@host[:port]" connection string, accepting
// bracketed IPv6 literals (e.g. "root@[::1]:2222"). The user part is
// required: a string without "user@" is rejected.
func ParseNode(connectionString string) (Node, error) {
	s := connectionString
	user := ""
	if at := strings.LastIndex(s, "@"); at >= 0 {
		user = s[:at]
		s = s[at+1:]
	}
	if user == "" {
		return Node{}, fmt.Errorf("node: user must not be empty in %q", connectionString)
	}

	host := s
	port := 22

	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return Node{}, fmt.Errorf("node: unterminated IPv6 bracket in %q", connectionString)
		}
		host = s[1:end]
		rest := s[end+1:]
		if strings.HasPrefix(rest, ":") {
			p, err := strconv.Atoi(rest[1:])
			if err != nil {
				return Node{}, fmt.Errorf("node: invalid port in %q: %w", connectionString, err)
			}
			port = p
		}
	} else if idx := strings.LastIndex(s, ":"); idx >= 0 {
		host = s[:idx]
		p, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return Node{}, fmt.Errorf("node: invalid port in %q: %w", connectionString, err)
		}
		port = p
	}

	n := Node{Host: host, User: user, Port: port}
	if err := n.validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (n Node) validate() error {
	if n.User == "" {
		return fmt.Errorf("node: user must not be empty")
	}
	if n.Port < 1 || n.Port > 65535 {
		return fmt.Errorf("node: port %d out of range [1, 65535]", n.Port)
	}
	if n.Host == "" {
		return fmt.Errorf("node: host must not be empty")
	}
	if net.ParseIP(n.Host) != nil {
		return nil
	}
	if !isValidDNSName(n.Host) {
		return fmt.Errorf("node: host %q is not a valid DNS name or IP literal", n.Host)
	}
	return nil
}

func isValidDNSName(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
	}
	return true
}

// String renders the node in "user@host:port" form, bracketing IPv6 hosts.
func (n Node) String() string {
	host := n.Host
	if ip := net.ParseIP(host); ip != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s@%s:%d", n.User, host, n.Port)
}

// HostPrefix returns the blast-radius grouping key for this node: the
// first DNS label with a trailing digit/hyphen run stripped (or the
// pre-first-dot segment for fully-qualified names).
func (n Node) HostPrefix() string {
	host := n.Host
	if idx := strings.Index(host, "."); idx >= 0 {
		host = host[:idx]
	}
	return strings.TrimRight(host, "0123456789-")
}
