package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
)

func TestDefaultIsValidOnceRoleAndRequiredFlagsSet(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.LocalIP = netip.MustParseAddr("127.0.0.1")
	c.ListenPort = 23000

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMissingRole(t *testing.T) {
	c := Default()
	if err := c.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want an error for missing role")
	}
}

func TestValidateInterfaceMutualExclusion(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.ListenPort = 23000

	// Neither -e nor -l set.
	if err := c.Validate(); err == nil || err.Code != errcode.InterfaceConflict {
		t.Fatalf("Validate() = %v, want InterfaceConflict", err)
	}

	// Both -e and -l set.
	c.Iface = "eth0"
	c.LocalIP = netip.MustParseAddr("10.0.0.1")
	if err := c.Validate(); err == nil || err.Code != errcode.InterfaceConflict {
		t.Fatalf("Validate() = %v, want InterfaceConflict", err)
	}
}

func TestValidateServerRequiresListenPort(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.LocalIP = netip.MustParseAddr("127.0.0.1")

	if err := c.Validate(); err == nil || err.Code != errcode.RoleFlagMissing {
		t.Fatalf("Validate() = %v, want RoleFlagMissing", err)
	}
}

func TestValidateClientRequiresServerEndpoint(t *testing.T) {
	c := Default()
	c.Role = RoleClient
	c.LocalIP = netip.MustParseAddr("127.0.0.1")

	if err := c.Validate(); err == nil || err.Code != errcode.RoleFlagMissing {
		t.Fatalf("Validate() = %v, want RoleFlagMissing (server IP)", err)
	}

	c.ServerIP = netip.MustParseAddr("203.0.113.1")
	if err := c.Validate(); err == nil || err.Code != errcode.RoleFlagMissing {
		t.Fatalf("Validate() = %v, want RoleFlagMissing (endpoint IP)", err)
	}

	c.EndpointIP = netip.MustParseAddr("192.168.1.10")
	if err := c.Validate(); err == nil || err.Code != errcode.RoleFlagMissing {
		t.Fatalf("Validate() = %v, want RoleFlagMissing (endpoint port)", err)
	}

	c.EndpointPort = 7777
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil once every client flag is set", err)
	}
}

func TestValidatePortRange(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.LocalIP = netip.MustParseAddr("127.0.0.1")
	c.ListenPort = 80 // below 1024

	if err := c.Validate(); err == nil || err.Code != errcode.InvalidPort {
		t.Fatalf("Validate() = %v, want InvalidPort", err)
	}
}

func TestValidateBasePortTooCloseToRangeCeiling(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.LocalIP = netip.MustParseAddr("127.0.0.1")
	c.ListenPort = 23000
	c.Peers = 4
	c.ServerBasePort = 65534 // only 1 slot fits below 65535, but Peers is 4

	if err := c.Validate(); err == nil || err.Code != errcode.InvalidPort {
		t.Fatalf("Validate() = %v, want InvalidPort", err)
	}
}

func TestValidatePeerCount(t *testing.T) {
	c := Default()
	c.Role = RoleServer
	c.LocalIP = netip.MustParseAddr("127.0.0.1")
	c.ListenPort = 23000
	c.Peers = 0

	if err := c.Validate(); err == nil || err.Code != errcode.InvalidPeerCount {
		t.Fatalf("Validate() = %v, want InvalidPeerCount", err)
	}
}

func TestResolveLocalIPNoopWhenAlreadySet(t *testing.T) {
	c := Default()
	want := netip.MustParseAddr("10.1.2.3")
	c.LocalIP = want

	if err := c.ResolveLocalIP(); err != nil {
		t.Fatalf("ResolveLocalIP() = %v, want nil", err)
	}
	if c.LocalIP != want {
		t.Fatalf("LocalIP = %v, want unchanged %v", c.LocalIP, want)
	}
}

func TestResolveLocalIPUnknownInterface(t *testing.T) {
	c := Default()
	c.Iface = "no-such-interface-xyz"

	if err := c.ResolveLocalIP(); err == nil || err.Code != errcode.InterfaceResolve {
		t.Fatalf("ResolveLocalIP() = %v, want InterfaceResolve", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unicaster.ini")

	contents := `
[LOGGING]
logging_level = debug

[CONNECTION]
receive_buffer_size = 4096
packet_queue_size = 64
client_connection_timeout = 5
server_connection_timeout = 6
server_peer_connection_timeout = 30

[KEEP-ALIVE]
ping_interval = 2
ping_timeout = 3
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := Default()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() = %v, want nil", err)
	}

	if c.LogLevel != logging.DebugLevel {
		t.Errorf("LogLevel = %v, want DebugLevel", c.LogLevel)
	}
	if c.ReceiveBufferSize != 4096 {
		t.Errorf("ReceiveBufferSize = %d, want 4096", c.ReceiveBufferSize)
	}
	if c.PacketQueueSize != 64 {
		t.Errorf("PacketQueueSize = %d, want 64", c.PacketQueueSize)
	}
	if c.ClientConnectionTimeout != 5*time.Second {
		t.Errorf("ClientConnectionTimeout = %v, want 5s", c.ClientConnectionTimeout)
	}
	if c.ServerPeerConnTimeout != 30*time.Second {
		t.Errorf("ServerPeerConnTimeout = %v, want 30s", c.ServerPeerConnTimeout)
	}
	if c.PingInterval != 2*time.Second {
		t.Errorf("PingInterval = %v, want 2s", c.PingInterval)
	}
}

func TestLoadFileEmptyPathIsNoop(t *testing.T) {
	c := Default()
	if err := c.LoadFile(""); err != nil {
		t.Fatalf("LoadFile(\"\") = %v, want nil", err)
	}
	if c.ReceiveBufferSize != DefaultReceiveBufferSize {
		t.Fatalf("defaults mutated by LoadFile(\"\")")
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	c := Default()
	if err := c.LoadFile("/nonexistent/path/unicaster.ini"); err == nil || err.Code != errcode.ConfigFileParse {
		t.Fatalf("LoadFile() = %v, want ConfigFileParse", err)
	}
}
