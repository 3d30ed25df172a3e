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
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/stats"
)

// RelayWorker runs one (role, direction)-relay incarnation: it dequeues
// datagrams from the slot's matching channel and writes them to conn,
// addressed at a target that may be fixed (client source-relay,
// client destination-relay, the static target parameter) or dynamic
// (server source-relay reads slot.TunnelTarget; server destination-relay
// reads slot.PeerAddr).
//
// mode.Role == server combined with mode.Dir == Source additionally runs
// the server keep-alive handshake first (server-source-relay).
func RelayWorker(ctx context.Context, mode Mode, conn *net.UDPConn, target netip.AddrPort, slot *Slot, counters *stats.Counters, log logging.Logger) {
	log = log.WithFields(logging.Fields{"mode": mode.String()})
	log.Info("relay worker started")
	defer log.Info("relay worker stopped")

	if mode.Role == config.RoleServer && mode.Dir == Source {
		if err := ServerHandshake(ctx, conn, slot, log); err != nil {
			return
		}
	}

	dynamicPeer := mode.Role == config.RoleServer && mode.Dir == Destination
	if dynamicPeer {
		select {
		case <-slot.Link.Done():
		case <-slot.Exit.Done():
			return
		case <-ctx.Done():
			return
		}
		if err := awaitPeerAddr(ctx, slot, log); err != nil {
			return
		}
	}

	ch := slot.Upstream
	if mode.Dir == Destination {
		ch = slot.Downstream
	}

	for !slot.Exit.IsSet() {
		payload, err := ch.Recv(ctx, config.DefaultTimeout)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				log.Debug("timed out while waiting to send packet")
				continue
			}
			return
		}

		dest := target
		if mode.Role == config.RoleServer && mode.Dir == Source {
			dest = slot.TunnelTarget.Load()
		} else if dynamicPeer {
			dest = slot.PeerAddr.Load()
		}
		if !dest.IsValid() {
			log.Debug("unknown or dropped remote peer, ignoring packet")
			continue
		}

		log.Debug("using remote peer %s", dest)
		if _, err := conn.WriteToUDP(payload, net.UDPAddrFromAddrPort(dest)); err != nil {
			log.Debug("unknown or dropped remote peer, ignoring packet")
			continue
		}

		if mode.Dir == Destination && counters != nil {
			counters.AddOutbound()
		}
		log.Debug("replicated a packet to %s", dest)
	}
}

// awaitPeerAddr polls slot.PeerAddr until the admission worker has learned
// the remote peer's address, or until slot.Exit/ctx fires. The original
// polls every 50ms; since link_event is already cleared by the time this
// runs, the wait here is expected to be minimal.
func awaitPeerAddr(ctx context.Context, slot *Slot, log logging.Logger) error {
	for {
		if slot.PeerAddr.Load().IsValid() {
			log.Info("cached remote peer IP address/port")
			return nil
		}
		log.Debug("waiting to establish remote peer IP address/port")

		t := time.NewTimer(50 * time.Millisecond)
		select {
		case <-t.C:
		case <-slot.Exit.Done():
			t.Stop()
			return errExit
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

var errExit = errors.New("relay: exit requested")
