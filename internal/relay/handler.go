/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package relay

import (
	"context"
	"net"
	"net/netip"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/stats"
)

// Handler is the remote peer handler for one slot: it owns that slot's two
// UDP sockets (source and destination, named after the data model, not
// after which physical direction they face — see the worker wiring below)
// and runs that slot's four workers (three on the server, since
// server-source-receive does not exist) for as many incarnations as the
// slot resets through.
//
// Worker-to-socket wiring, grounded on the original's RemotePeerHandler:
//
//	source-receive (client only) -> source socket, target = tunnel peer
//	source-relay               -> destination socket, target = endpoint (client) / learned tunnel peer (server)
//	destination-receive         -> destination socket
//	destination-relay           -> source socket, target = tunnel peer (client) / learned remote peer (server)
//
// Both the client's and server's own "source" and "destination" sockets
// are each shared by one receive worker and one relay worker of the
// opposite queue, exactly as in the original.
type Handler struct {
	cfg      *config.Config
	role     config.Role
	index    int
	slot     *Slot
	log      logging.Logger
	counters *stats.Counters

	sourceConn     *net.UDPConn
	destConn       *net.UDPConn
	ownsSourceConn bool

	// tunnelTarget is the constant server tunnel address, used by the
	// client both to ping during the handshake and as the fixed target of
	// destination-relay. Unused (zero) on the server, where both of those
	// targets are learned dynamically per incarnation.
	tunnelTarget netip.AddrPort
	// endpointTarget is the constant endpoint address, used by the client
	// as the fixed target of source-relay. Unused (zero) on the server.
	endpointTarget netip.AddrPort

	resetCh chan<- int
}

// NewServerHandler builds the handler for server slot index, reusing the
// shared admission socket as its source socket and binding a fresh tunnel
// socket as its destination socket.
func NewServerHandler(cfg *config.Config, index int, slot *Slot, admissionConn *net.UDPConn, log logging.Logger, counters *stats.Counters, resetCh chan<- int) (*Handler, *errcode.Error) {
	ports := ServerSlotPorts(cfg, index)

	destConn, err := bindUDP(cfg.LocalIP, ports.RelayPort)
	if err != nil {
		return nil, errcode.New(errcode.BindDestination, err)
	}

	return &Handler{
		cfg:      cfg,
		role:     config.RoleServer,
		index:    index,
		slot:     slot,
		log:      log,
		counters: counters,
		sourceConn:     admissionConn,
		destConn:       destConn,
		ownsSourceConn: false,
		resetCh:        resetCh,
	}, nil
}

// NewClientHandler builds the handler for client slot index, dialing out a
// fresh source socket bound to the tunnel port and a fresh destination
// socket facing the endpoint.
func NewClientHandler(cfg *config.Config, index int, slot *Slot, log logging.Logger, counters *stats.Counters, resetCh chan<- int) (*Handler, *errcode.Error) {
	ports := ClientSlotPorts(cfg, index)

	sourceConn, err := bindUDP(cfg.LocalIP, ports.SourcePort)
	if err != nil {
		return nil, errcode.New(errcode.BindSource, err)
	}
	destConn, err := bindUDP(cfg.LocalIP, ports.RelayPort)
	if err != nil {
		sourceConn.Close()
		return nil, errcode.New(errcode.BindDestination, err)
	}

	tunnelTarget := netip.AddrPortFrom(cfg.ServerIP, uint16(ports.SourcePort))
	endpointTarget := netip.AddrPortFrom(cfg.EndpointIP, uint16(ports.DestinationPort))

	return &Handler{
		cfg:            cfg,
		role:           config.RoleClient,
		index:          index,
		slot:           slot,
		log:            log,
		counters:       counters,
		sourceConn:     sourceConn,
		destConn:       destConn,
		ownsSourceConn: true,
		tunnelTarget:   tunnelTarget,
		endpointTarget: endpointTarget,
		resetCh:        resetCh,
	}, nil
}

func bindUDP(ip netip.Addr, port int) (*net.UDPConn, error) {
	return net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, uint16(port))))
}

// Run drives incarnations of this slot's workers until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		h.runIncarnation(ctx)
		if ctx.Err() != nil {
			return
		}
		h.log.Info("resetting sockets and respawning workers")
		h.slot.Reset()
	}
}

func (h *Handler) runIncarnation(ctx context.Context) {
	// Tag every log line of this incarnation with a fresh correlation ID, so
	// a reset shows up as a clean break in the log stream rather than an
	// unmarked continuation of the previous incarnation's lines.
	log := h.log.WithFields(logging.Fields{"incarnation": uuid.New().String()})

	var g errgroup.Group
	spawn := func(fn func()) {
		g.Go(func() error {
			fn()
			return nil
		})
	}

	if h.role == config.RoleClient {
		spawn(func() {
			ReceiveWorker(ctx, Mode{Role: h.role, Dir: Source, St: Receive}, h.sourceConn, h.tunnelTarget, h.slot, h.cfg, h.counters, h.resetCh, log)
		})
	}

	spawn(func() {
		RelayWorker(ctx, Mode{Role: h.role, Dir: Source, St: Relay}, h.destConn, h.endpointTarget, h.slot, h.counters, log)
	})
	spawn(func() {
		ReceiveWorker(ctx, Mode{Role: h.role, Dir: Destination, St: Receive}, h.destConn, netip.AddrPort{}, h.slot, h.cfg, h.counters, h.resetCh, log)
	})
	spawn(func() {
		RelayWorker(ctx, Mode{Role: h.role, Dir: Destination, St: Relay}, h.sourceConn, h.tunnelTarget, h.slot, h.counters, log)
	})

	_ = g.Wait()
}

// Close releases the sockets this handler owns. The server's source socket
// is the shared admission socket and is never closed here; Supervisor owns
// its lifetime.
func (h *Handler) Close() {
	if h.ownsSourceConn {
		h.sourceConn.Close()
	}
	h.destConn.Close()
}
