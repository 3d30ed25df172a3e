package relay

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/proto"
	"github.com/sabouaram/unicaster/internal/stats"
)

// These tests drive a real server Supervisor and client Supervisor over
// loopback, using distinct addresses in 127.0.0.0/8 for the server, the
// client/endpoint, and the simulated internet peer so the two roles never
// fight over a port number the way they would on separate real hosts. They
// exercise the testable properties of §8 directly: transparency, the
// handshake barrier, and keep-alive quarantine.

func freePort(t *testing.T, ip string) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(ip), Port: 0})
	if err != nil {
		t.Fatalf("freePort(%s): %v", ip, err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// pair wires a server Supervisor and a client Supervisor with one slot each,
// pointed at each other over loopback, plus a fake internet peer socket and
// a fake endpoint socket standing in for the external collaborators.
type pair struct {
	serverSup *Supervisor
	clientSup *Supervisor

	peerConn     *net.UDPConn
	endpointConn *net.UDPConn
	admissionTo  *net.UDPAddr

	cancel context.CancelFunc
}

func newPair(t *testing.T, tweak func(srv, cli *config.Config)) *pair {
	t.Helper()

	srv := config.Default()
	srv.Role = config.RoleServer
	srv.Peers = 1
	srv.LocalIP = mustAddr(t, "127.0.0.1")
	srv.ListenPort = freePort(t, "127.0.0.1")
	srv.ServerBasePort = freePort(t, "127.0.0.1")
	srv.ClientBasePort = freePort(t, "127.0.0.1")
	srv.PingInterval = 10 * time.Millisecond
	srv.PingTimeout = 100 * time.Millisecond
	srv.ClientConnectionTimeout = 5 * time.Second
	srv.ServerConnectionTimeout = 5 * time.Second
	srv.ServerPeerConnTimeout = 5 * time.Second

	cli := config.Default()
	cli.Role = config.RoleClient
	cli.Peers = 1
	cli.LocalIP = mustAddr(t, "127.0.0.2")
	cli.ServerIP = mustAddr(t, "127.0.0.1")
	cli.EndpointIP = mustAddr(t, "127.0.0.2")
	cli.EndpointPort = freePort(t, "127.0.0.2")
	cli.ServerBasePort = srv.ServerBasePort
	cli.ClientBasePort = srv.ClientBasePort
	cli.PingInterval = 10 * time.Millisecond
	cli.PingTimeout = 100 * time.Millisecond
	cli.ClientConnectionTimeout = 5 * time.Second
	cli.ServerConnectionTimeout = 5 * time.Second

	if tweak != nil {
		tweak(srv, cli)
	}

	log := logging.New(logging.SilentLevel, io.Discard)

	serverSup, serr := New(srv, log, stats.New(nil))
	if serr != nil {
		t.Fatalf("server New: %v", serr)
	}
	clientSup, cerr := New(cli, log, stats.New(nil))
	if cerr != nil {
		t.Fatalf("client New: %v", cerr)
	}

	peerConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.3"), Port: 0})
	if err != nil {
		t.Fatalf("peer socket: %v", err)
	}
	endpointConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.2"), Port: cli.EndpointPort})
	if err != nil {
		t.Fatalf("endpoint socket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go serverSup.Run(ctx)
	go clientSup.Run(ctx)

	p := &pair{
		serverSup:    serverSup,
		clientSup:    clientSup,
		peerConn:     peerConn,
		endpointConn: endpointConn,
		admissionTo:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: srv.ListenPort},
		cancel:       cancel,
	}

	t.Cleanup(func() {
		cancel()
		peerConn.Close()
		endpointConn.Close()
	})

	return p
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	addr, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return addr
}

// linked reports whether both sides of slot 0 have completed the handshake.
func (p *pair) linked() bool {
	return p.serverSup.slots[0].Link.IsSet() && p.clientSup.slots[0].Link.IsSet()
}

// sendUntilForwarded repeatedly sends payload from the peer socket to the
// server's admission port until it shows up (byte-for-byte) on the endpoint
// socket, or the deadline elapses. Resending is necessary because the very
// first datagram a peer sends is also the one that completes the handshake
// (the admission worker is what flips RemotePeer, which is what makes the
// server's keep-alive loop emit the halt); until that race settles, earlier
// sends may arrive before the tunnel is ready to relay them.
func sendUntilForwarded(t *testing.T, p *pair, payload []byte) net.Addr {
	t.Helper()
	return sendUntilForwardedWithin(t, p, payload, 3*time.Second)
}

func sendUntilForwardedWithin(t *testing.T, p *pair, payload []byte, within time.Duration) net.Addr {
	t.Helper()

	deadline := time.Now().Add(within)
	buf := make([]byte, 4096)

	for time.Now().Before(deadline) {
		if _, err := p.peerConn.WriteToUDP(payload, p.admissionTo); err != nil {
			t.Fatalf("peer send: %v", err)
		}

		_ = p.endpointConn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
		n, from, err := p.endpointConn.ReadFromUDP(buf)
		if err == nil {
			if !bytes.Equal(buf[:n], payload) {
				t.Fatalf("endpoint got %q, want %q", buf[:n], payload)
			}
			return from
		}
	}

	t.Fatalf("payload never reached the endpoint within the deadline")
	return nil
}

func TestSinglePeerEchoRoundTrip(t *testing.T) {
	p := newPair(t, nil)

	payload := []byte{0x41, 0x42}
	from := sendUntilForwarded(t, p, payload)

	if !p.linked() {
		t.Fatalf("handshake did not complete for slot 0")
	}

	reply := []byte{0x43}
	if _, err := p.endpointConn.WriteToUDP(reply, from.(*net.UDPAddr)); err != nil {
		t.Fatalf("endpoint reply: %v", err)
	}

	buf := make([]byte, 4096)
	_ = p.peerConn.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, _, err := p.peerConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer did not receive the reply: %v", err)
	}
	if !bytes.Equal(buf[:n], reply) {
		t.Fatalf("peer got %q, want %q", buf[:n], reply)
	}
}

// TestKeepAliveDatagramIsQuarantined covers invariant 7 and scenario 6: a
// peer datagram whose payload is byte-identical to the reserved keep-alive
// must never reach the endpoint, and must instead force a slot to reset.
// The admission worker forwards whatever a known peer sends without
// filtering (it has no equivalent of the receive-worker keep-alive check),
// so it is client-source-receive, reading the tunnel on the other end, that
// first recognizes the reserved payload and resets its slot before ever
// enqueuing it for the endpoint. Regression test for the receive-worker
// filter: it must quarantine both reserved payloads (KeepAlive and
// KeepAliveHalt), not only KeepAlive.
func TestKeepAliveDatagramIsQuarantined(t *testing.T) {
	p := newPair(t, func(srv, cli *config.Config) {
		// Bound how long a bystander worker (destination-receive) can take
		// to notice the slot's exit flag and unblock its own read, so the
		// reset this test triggers tears the incarnation down promptly.
		srv.ServerConnectionTimeout = time.Second
		cli.ClientConnectionTimeout = time.Second
	})

	sendUntilForwarded(t, p, []byte("steady-state-traffic"))

	for _, reserved := range [][]byte{proto.KeepAlive, proto.KeepAliveHalt} {
		if _, err := p.peerConn.WriteToUDP(reserved, p.admissionTo); err != nil {
			t.Fatalf("peer send reserved payload: %v", err)
		}

		// Drain whatever the endpoint receives for a window comfortably
		// longer than the teardown/re-handshake cycle: the reserved
		// payload itself must never appear among it.
		deadline := time.Now().Add(3 * time.Second)
		buf := make([]byte, 4096)
		for time.Now().Before(deadline) {
			_ = p.endpointConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, _, err := p.endpointConn.ReadFromUDP(buf)
			if err == nil && bytes.Equal(buf[:n], reserved) {
				t.Fatalf("reserved payload %q was delivered to the endpoint", reserved)
			}
		}

		// Normal traffic resumes after the slot resets and re-handshakes.
		sendUntilForwardedWithin(t, p, []byte("post-reset-traffic"), 6*time.Second)
	}
}

// TestAdmissionEvictsIdlePeerUnderPressure covers scenario 3: once every
// slot is occupied and the peer table goes idle past
// ServerPeerConnTimeout, the admission worker purges its peer table so a
// newly arriving peer can take over.
func TestAdmissionEvictsIdlePeerUnderPressure(t *testing.T) {
	cfg := config.Default()
	cfg.Peers = 1
	cfg.ServerPeerConnTimeout = 150 * time.Millisecond

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("admission socket: %v", err)
	}
	defer conn.Close()
	admissionAddr := conn.LocalAddr().(*net.UDPAddr)

	slots := []*Slot{NewSlot(0, 8)}
	counters := stats.New(nil)
	log := logging.New(logging.SilentLevel, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go AdmissionWorker(ctx, conn, slots, cfg, counters, log, nil)

	peerA, _ := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.3"), Port: 0})
	defer peerA.Close()
	if _, err := peerA.WriteToUDP([]byte("a"), admissionAddr); err != nil {
		t.Fatalf("peer A send: %v", err)
	}

	if _, err := slots[0].Upstream.Recv(ctx, time.Second); err != nil {
		t.Fatalf("slot did not receive peer A's datagram: %v", err)
	}
	if slots[0].PeerAddr.Load().Addr().String() != "127.0.0.3" {
		t.Fatalf("slot 0 not mapped to peer A")
	}

	// Let the peer table go idle past ServerPeerConnTimeout.
	time.Sleep(cfg.ServerPeerConnTimeout + 200*time.Millisecond)

	peerC, _ := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.4"), Port: 0})
	defer peerC.Close()
	if _, err := peerC.WriteToUDP([]byte("c"), admissionAddr); err != nil {
		t.Fatalf("peer C send: %v", err)
	}

	if _, err := slots[0].Upstream.Recv(ctx, time.Second); err != nil {
		t.Fatalf("slot did not receive peer C's datagram: %v", err)
	}
	if slots[0].PeerAddr.Load().Addr().String() != "127.0.0.4" {
		t.Fatalf("slot 0 still mapped to peer A after idle purge, want peer C")
	}
}
