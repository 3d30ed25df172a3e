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
	"github.com/sabouaram/unicaster/internal/stats"
)

// AdmissionWorker is the server's single catch-all receive loop (the
// conceptual server-source-receive worker, run once for every slot rather
// than once per slot). It demultiplexes inbound datagrams by source
// address onto the matching slot's Upstream channel, assigning slots to
// new peers on a first-seen basis and evicting idle ones under pressure.
//
// started gates entry into the receive loop: the worker waits on it (or
// ctx) first, so it never flips a slot's RemotePeer flag before that
// slot's own handler goroutine has been scheduled. A nil channel is
// treated as already closed. Grounded on the original's
// child_proc_started_event, set once every RemotePeerHandler has been
// started and waited on by the server's admission loop before it begins
// reading.
func AdmissionWorker(ctx context.Context, conn *net.UDPConn, slots []*Slot, cfg *config.Config, counters *stats.Counters, log logging.Logger, started <-chan struct{}) {
	log = log.WithFields(logging.Fields{"mode": "server-source-receive"})
	log.Info("server worker started")
	defer log.Info("server worker stopped")

	if started != nil {
		log.Debug("waiting for every peer handler to start")
		select {
		case <-started:
		case <-ctx.Done():
			return
		}
	}

	forward := make(map[netip.AddrPort]int, len(slots))
	vacancy := make([]bool, len(slots))
	for i := range vacancy {
		vacancy[i] = true
	}

	buf := make([]byte, cfg.ReceiveBufferSize)

	for ctx.Err() == nil {
		if len(forward) > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.ServerPeerConnTimeout))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				if len(forward) != 0 {
					log.Info("purging peer list")
					forward = make(map[netip.AddrPort]int, len(slots))
					for i, s := range slots {
						vacancy[i] = true
						s.PeerAddr.Store(netip.AddrPort{})
					}
				} else {
					log.Debug("timed out while waiting to receive packet")
				}
				continue
			}
			if isClosed(err) || ctx.Err() != nil {
				return
			}
			log.Warn("packet transmission was forcibly halted")
			continue
		}

		peer := addr.AddrPort()
		size := n
		payload := buf[:n]

		idx, known := forward[peer]
		if !known {
			log.Info("detected new remote peer %s", peer)

			if !anyVacant(vacancy) {
				for i, s := range slots {
					if !s.RemotePeer.IsSet() {
						log.Debug("vacating queue %d", i)
						if old := s.PeerAddr.Load(); old.IsValid() {
							delete(forward, old)
						}
						s.PeerAddr.Store(netip.AddrPort{})
						vacancy[i] = true
					}
				}
			}

			newIdx := firstVacant(vacancy)
			if newIdx < 0 {
				log.Warn("%s tried to connect but found no vacancies", peer)
				continue
			}

			forward[peer] = newIdx
			idx = newIdx
			vacancy[idx] = false
			slots[idx].PeerAddr.Store(peer)
			slots[idx].RemotePeer.Set()
		} else if !slots[idx].RemotePeer.IsSet() {
			log.Info("reinstated dropped peer %s", peer)
			slots[idx].RemotePeer.Set()
		}

		if size > cfg.ReceiveBufferSize {
			log.Error("packet size of %d is greater than the receive buffer size", size)
		}

		cp := make([]byte, size)
		copy(cp, payload)

		if slots[idx].Upstream.Full() {
			log.Error("packet queue has hit its capacity limit")
		}
		if err := slots[idx].Upstream.Send(ctx, cp); err != nil {
			return
		}
		if counters != nil {
			counters.AddInbound(size)
		}
	}
}

func anyVacant(vacancy []bool) bool {
	for _, v := range vacancy {
		if v {
			return true
		}
	}
	return false
}

func firstVacant(vacancy []bool) int {
	for i, v := range vacancy {
		if v {
			return i
		}
	}
	return -1
}
