/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config parses and validates the command-line surface and the
// optional INI configuration file, producing a single immutable Config the
// rest of the relay is built from. Argument parsing and config-file parsing
// are named external collaborators by the specification, but they still
// follow the teacher's stack (spf13/pflag through Cobra, spf13/viper for the
// INI file) rather than a hand-rolled flag reader.
package config

import (
	"net"
	"net/netip"
	"time"

	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
)

// Role is the fixed-at-startup instance role.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

const (
	// DefaultServerBasePort is SRV_BASE from the port-wiring subsection.
	DefaultServerBasePort = 23000
	// DefaultClientBasePort is CLI_BASE from the port-wiring subsection.
	DefaultClientBasePort = 23100

	DefaultPeers = 1

	DefaultReceiveBufferSize         = 2048
	DefaultPacketQueueSize           = 256
	DefaultClientConnectionTimeout   = 20 * time.Second
	DefaultServerConnectionTimeout   = 20 * time.Second
	DefaultServerPeerConnTimeout     = 60 * time.Second
	DefaultPingInterval              = 1 * time.Second
	DefaultPingTimeout                = 2 * time.Second
	// DefaultTimeout is DEFAULT_TIMEOUT from §4.2/§4.3: the bounded-wait
	// granularity every worker uses to observe its exit flag between
	// suspension points.
	DefaultTimeout = 2 * time.Second
)

// Config is the fully validated, immutable configuration for one instance.
type Config struct {
	Role Role

	Iface   string
	LocalIP netip.Addr

	Peers int

	// Server-only.
	ListenPort int

	// Client-only.
	ServerIP     netip.Addr
	EndpointIP   netip.Addr
	EndpointPort int

	ServerBasePort int
	ClientBasePort int

	Quiet      bool
	LogLevel   logging.Level
	ConfigFile string

	ReceiveBufferSize       int
	PacketQueueSize         int
	ClientConnectionTimeout time.Duration
	ServerConnectionTimeout time.Duration
	ServerPeerConnTimeout   time.Duration
	PingInterval            time.Duration
	PingTimeout             time.Duration
}

// Default returns a Config pre-filled with every documented default, with
// neither role nor any required flag set.
func Default() *Config {
	return &Config{
		Peers:                   DefaultPeers,
		ServerBasePort:          DefaultServerBasePort,
		ClientBasePort:          DefaultClientBasePort,
		LogLevel:                logging.InfoLevel,
		ReceiveBufferSize:       DefaultReceiveBufferSize,
		PacketQueueSize:         DefaultPacketQueueSize,
		ClientConnectionTimeout: DefaultClientConnectionTimeout,
		ServerConnectionTimeout: DefaultServerConnectionTimeout,
		ServerPeerConnTimeout:   DefaultServerPeerConnTimeout,
		PingInterval:            DefaultPingInterval,
		PingTimeout:             DefaultPingTimeout,
	}
}

// Validate checks the invariants of §6/§7: role presence, role-specific
// required flags (including the presence of each required IP), the -e/-l
// mutual exclusion, and port/peer-count ranges.
// It returns the first failure found, tagged with the exit code that
// failure owns.
func (c *Config) Validate() *errcode.Error {
	switch c.Role {
	case RoleServer, RoleClient:
	default:
		return errcode.Newf(errcode.RoleMissing, "role must be %q or %q, got %q", RoleServer, RoleClient, c.Role)
	}

	if (c.Iface == "") == (!c.LocalIP.IsValid()) {
		return errcode.New(errcode.InterfaceConflict, nil)
	}

	if c.Peers < 1 {
		return errcode.Newf(errcode.InvalidPeerCount, "peer count must be >= 1, got %d", c.Peers)
	}

	if err := validateBasePort(c.ServerBasePort, c.Peers); err != nil {
		return errcode.New(errcode.InvalidPort, err)
	}
	if err := validateBasePort(c.ClientBasePort, c.Peers); err != nil {
		return errcode.New(errcode.InvalidPort, err)
	}

	switch c.Role {
	case RoleServer:
		if c.ListenPort == 0 {
			return errcode.New(errcode.RoleFlagMissing, errNeeded("-i"))
		}
		if err := validatePort(c.ListenPort); err != nil {
			return errcode.New(errcode.InvalidPort, err)
		}
	case RoleClient:
		if !c.ServerIP.IsValid() {
			return errcode.New(errcode.RoleFlagMissing, errNeeded("-s"))
		}
		if !c.EndpointIP.IsValid() {
			return errcode.New(errcode.RoleFlagMissing, errNeeded("-d"))
		}
		if c.EndpointPort == 0 {
			return errcode.New(errcode.RoleFlagMissing, errNeeded("-o"))
		}
		if err := validatePort(c.EndpointPort); err != nil {
			return errcode.New(errcode.InvalidPort, err)
		}
	}

	return nil
}

func validatePort(p int) error {
	if p < 1024 || p > 65535 {
		return portRangeError(p)
	}
	return nil
}

// validateBasePort checks a per-peer base port (ServerBasePort or
// ClientBasePort): it must be a valid port itself, and it must also leave
// room for peers consecutive slot ports below the range ceiling, since
// ports.go derives each slot's port as basePort + index + 1. Grounded on
// the original's "port > PORTS_RANGE[1] - peers" guard.
func validateBasePort(p, peers int) error {
	if err := validatePort(p); err != nil {
		return err
	}
	if p > 65535-peers {
		return basePortRangeError(p, peers)
	}
	return nil
}

// ResolveLocalIP resolves c.Iface to its first IPv4 address when -e was
// given instead of -l. A no-op when LocalIP is already valid.
func (c *Config) ResolveLocalIP() *errcode.Error {
	if c.LocalIP.IsValid() {
		return nil
	}

	ifc, err := net.InterfaceByName(c.Iface)
	if err != nil {
		return errcode.New(errcode.InterfaceResolve, err)
	}

	addrs, err := ifc.Addrs()
	if err != nil {
		return errcode.New(errcode.InterfaceResolve, err)
	}

	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			addr, ok := netip.AddrFromSlice(v4)
			if !ok {
				continue
			}
			c.LocalIP = addr
			return nil
		}
	}

	return errcode.Newf(errcode.InterfaceResolve, "interface %q has no IPv4 address", c.Iface)
}
