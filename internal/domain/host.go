package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSSHPort is assumed when a host address omits the port.
const DefaultSSHPort = 22

// HostKey identifies one managed endpoint. Two operators on the same
// machine, or one operator on two ports, are distinct hosts with distinct
// memory.
type HostKey struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	User    string `json:"user"`
}

// ParseHostKey accepts the CLI form "user@address[:port]".
func ParseHostKey(s string) (HostKey, error) {
	user, rest, ok := strings.Cut(s, "@")
	if !ok || user == "" || rest == "" {
		return HostKey{}, fmt.Errorf("host %q: want user@address[:port]", s)
	}
	key := HostKey{User: user, Address: rest, Port: DefaultSSHPort}
	if addr, portText, ok := strings.Cut(rest, ":"); ok {
		port, err := strconv.Atoi(portText)
		if err != nil || port < 1 || port > 65535 {
			return HostKey{}, fmt.Errorf("host %q: bad port %q", s, portText)
		}
		key.Address = addr
		key.Port = port
	}
	if key.Address == "" {
		return HostKey{}, fmt.Errorf("host %q: empty address", s)
	}
	return key, nil
}

// String renders the canonical "address:port:user" memory key.
func (k HostKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Address, k.Port, k.User)
}

// ParseStoredHostKey reverses String. The user and port are the last two
// segments; everything before them is the address, which keeps IPv6
// addresses with their own colons intact.
func ParseStoredHostKey(s string) (HostKey, error) {
	rest, user, ok := cutLast(s, ":")
	if !ok || user == "" {
		return HostKey{}, fmt.Errorf("stored host key %q: want address:port:user", s)
	}
	addr, portText, ok := cutLast(rest, ":")
	if !ok || addr == "" {
		return HostKey{}, fmt.Errorf("stored host key %q: want address:port:user", s)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		return HostKey{}, fmt.Errorf("stored host key %q: bad port %q", s, portText)
	}
	return HostKey{Address: addr, Port: port, User: user}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// DialAddr renders the "address:port" form the SSH dialer wants.
func (k HostKey) DialAddr() string {
	return fmt.Sprintf("%s:%d", k.Address, k.Port)
}

// Zero reports whether the key carries no endpoint.
func (k HostKey) Zero() bool {
	return k.Address == "" && k.User == ""
}

// HostFacts holds the environment probed once per session and offered to
// completion providers so generated commands fit the target distribution.
type HostFacts struct {
	OS          string `json:"os,omitempty"`
	Kernel      string `json:"kernel,omitempty"`
	CPUModel    string `json:"cpu_model,omitempty"`
	MemoryTotal string `json:"memory_total,omitempty"`
}

// Empty reports whether no fact was ever recorded.
func (f HostFacts) Empty() bool {
	return f == HostFacts{}
}

// HostProfile is everything remembered about one host: identity, probed
// facts, and the bounded turn history.
type HostProfile struct {
	Key       HostKey   `json:"key"`
	Facts     HostFacts `json:"facts"`
	Turns     []Turn    `json:"turns"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_updated"`
}

// HostContext is the read-only slice of a profile handed to providers.
type HostContext struct {
	Key         HostKey
	Facts       HostFacts
	RecentTurns []Turn
}
