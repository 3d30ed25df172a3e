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
	"time"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/proto"
	"github.com/sabouaram/unicaster/internal/stats"
)

// ReceiveWorker runs one (role, direction)-receive incarnation: it reads
// datagrams off conn and hands them to the slot's matching channel, until
// Exit fires. Source-direction workers enqueue to Upstream; destination
// workers wait for Link before their first read and enqueue to Downstream.
//
// mode.Dir == Source combined with mode.Role == client additionally runs
// the client keep-alive handshake first (client-source-receive); the
// equivalent server role, server-source-receive, does not exist as a
// worker — the admission worker subsumes it.
//
// A stray keep-alive datagram arriving once the handshake is done always
// triggers a reset, regardless of direction, matching the receive loop's
// uniform idata != KEEP_ALIVE_PACKET check in the original.
func ReceiveWorker(ctx context.Context, mode Mode, conn *net.UDPConn, target netip.AddrPort, slot *Slot, cfg *config.Config, counters *stats.Counters, resetCh chan<- int, log logging.Logger) {
	log = log.WithFields(logging.Fields{"mode": mode.String()})
	log.Info("receive worker started")
	defer log.Info("receive worker stopped")

	if mode.Dir == Source && mode.Role == config.RoleClient {
		if err := ClientHandshake(ctx, conn, target, slot, cfg, log); err != nil {
			return
		}
	}

	if mode.Dir == Destination {
		log.Debug("waiting for the peer connection to be established")
		select {
		case <-slot.Link.Done():
		case <-slot.Exit.Done():
			return
		case <-ctx.Done():
			return
		}
		log.Debug("cleared by link event")
	}

	timeout := receiveTimeout(mode, cfg)
	buf := make([]byte, cfg.ReceiveBufferSize)

	for !slot.Exit.IsSet() {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				if mode.Dir == Destination {
					log.Warn("the UDP connection has timed out, resetting sockets")
					requestReset(resetCh, slot)
					return
				}
				log.Debug("timed out while waiting to receive packet")
				continue
			}
			if isClosed(err) || ctx.Err() != nil {
				return
			}
			log.Warn("packet transmission was forcibly halted")
			continue
		}

		payload := buf[:n]
		if proto.IsReserved(payload) {
			log.Warn("keep alive packet detected, resetting sockets")
			requestReset(resetCh, slot)
			return
		}

		size := len(payload)
		log.Debug("received a packet, size %d", size)
		if size > cfg.ReceiveBufferSize {
			log.Error("packet size of %d is greater than the receive buffer size", size)
		}

		cp := make([]byte, size)
		copy(cp, payload)

		if mode.Dir == Source {
			if slot.Upstream.Full() {
				log.Error("packet queue has hit its capacity limit")
			}
			if err := slot.Upstream.Send(ctx, cp); err != nil {
				return
			}
			if counters != nil {
				counters.AddInbound(size)
			}
		} else {
			if slot.Downstream.Full() {
				log.Error("packet queue has hit its capacity limit")
			}
			if err := slot.Downstream.Send(ctx, cp); err != nil {
				return
			}
		}
	}
}

// receiveTimeout returns the read deadline for a receive worker's
// steady-state loop: DEFAULT_TIMEOUT for source-receive (the handshake
// already completed by this point, same as the original's always-true
// remote_peer_event check once the loop is reached), and the role's
// configured connection timeout for destination-receive.
func receiveTimeout(mode Mode, cfg *config.Config) time.Duration {
	if mode.Dir == Source {
		return config.DefaultTimeout
	}
	if mode.Role == config.RoleServer {
		return cfg.ServerConnectionTimeout
	}
	return cfg.ClientConnectionTimeout
}

func requestReset(resetCh chan<- int, slot *Slot) {
	slot.Exit.Set()
	select {
	case resetCh <- slot.Index:
	default:
	}
}
