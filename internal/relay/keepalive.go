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
	"os"
	"time"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/proto"
)

// ClientHandshake runs the client side of the keep-alive handshake on a
// client-source-receive worker's socket: it pings target until the server
// replies with the halt signal, or until slot.Exit/ctx fires first. It
// always sets slot.Link before returning, matching the original's
// unconditional link_event.set() once the mode check is satisfied.
func ClientHandshake(ctx context.Context, conn *net.UDPConn, target netip.AddrPort, slot *Slot, cfg *config.Config, log logging.Logger) error {
	defer slot.Link.Set()

	if slot.RemotePeer.IsSet() {
		return nil
	}

	log.Info("initiating relay connection keep alive")
	buf := make([]byte, cfg.ReceiveBufferSize)
	confirmed := false

	targetAddr := net.UDPAddrFromAddrPort(target)

	for !slot.RemotePeer.IsSet() && !slot.Exit.IsSet() {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug("sending a keep alive packet")
		if _, err := conn.WriteToUDP(proto.KeepAlive, targetAddr); err != nil {
			return err
		}

		_ = conn.SetReadDeadline(time.Now().Add(cfg.PingTimeout))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				log.Debug("timed out waiting for a reply")
				continue
			}
			if isClosed(err) {
				return err
			}
			log.Warn("packet transmission was forcibly halted")
			continue
		}

		if addr.AddrPort() != target {
			log.Warn("received a packet from an unexpected source")
			continue
		}

		payload := buf[:n]
		switch {
		case proto.IsKeepAlive(payload):
			log.Debug("received a keep alive packet")
			if !confirmed {
				log.Info("server connection confirmed")
				confirmed = true
			}
			sleepOrExit(ctx, slot, cfg.PingInterval)
		case proto.IsKeepAliveHalt(payload):
			log.Info("connection keep alive halted")
			slot.RemotePeer.Set()
		default:
			log.Warn("invalid keep alive packet content")
		}
	}

	return nil
}

// ServerHandshake runs the server side of the keep-alive handshake on a
// server-source-relay worker's tunnel socket. It waits for the client's
// pings, echoing them back until slot.RemotePeer is set by the admission
// worker, then sends the halt signal and returns. The client's address, as
// observed on every ping, is stored into slot.TunnelTarget continuously
// rather than a worker-local variable, so every worker of the incarnation
// reads the same, most-recent value.
func ServerHandshake(ctx context.Context, conn *net.UDPConn, slot *Slot, log logging.Logger) error {
	defer slot.Link.Set()

	if slot.RemotePeer.IsSet() {
		return nil
	}

	log.Info("initiating relay connection keep alive")
	buf := make([]byte, 2048)
	confirmed := false

	for !slot.RemotePeer.IsSet() && !slot.Exit.IsSet() {
		_ = conn.SetReadDeadline(time.Now().Add(config.DefaultTimeout))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if isClosed(err) || ctx.Err() != nil {
				return err
			}
			continue
		}

		payload := buf[:n]
		if proto.IsKeepAlive(payload) {
			log.Debug("received a keep alive packet")
			if !confirmed {
				log.Info("client connection confirmed")
				confirmed = true
			}
		} else {
			log.Warn("invalid keep alive packet content")
		}

		slot.TunnelTarget.Store(addr.AddrPort())

		if !slot.RemotePeer.IsSet() {
			log.Debug("sending a keep alive packet")
			_, _ = conn.WriteToUDP(proto.KeepAlive, addr)
		} else {
			log.Debug("halting keep alive")
			_, _ = conn.WriteToUDP(proto.KeepAliveHalt, addr)
			log.Info("connection keep alive halted")
		}
	}

	return nil
}

func sleepOrExit(ctx context.Context, slot *Slot, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-slot.Exit.Done():
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}
