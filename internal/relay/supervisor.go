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
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/unicaster/internal/config"
	"github.com/sabouaram/unicaster/internal/errcode"
	"github.com/sabouaram/unicaster/internal/logging"
	"github.com/sabouaram/unicaster/internal/stats"
)

// Supervisor owns the full peer-slot array plus, for a server, the shared
// admission socket and its worker. It is the Go counterpart of the
// original's __main__ block: where that block wired multiprocessing
// primitives together, Supervisor wires goroutines, each Handler looping
// through its own incarnations instead of an external process being killed
// and respawned by a reset queue.
type Supervisor struct {
	cfg      *config.Config
	log      logging.Logger
	counters *stats.Counters

	slots    []*Slot
	handlers []*Handler

	admissionConn *net.UDPConn
	resetCh       chan int
}

// New builds a Supervisor for cfg, binding every socket the role needs.
// Returns an *errcode.Error on any bind failure, with no goroutines
// started yet.
func New(cfg *config.Config, log logging.Logger, counters *stats.Counters) (*Supervisor, *errcode.Error) {
	slots := make([]*Slot, cfg.Peers)
	for i := range slots {
		slots[i] = NewSlot(i, cfg.PacketQueueSize)
	}

	s := &Supervisor{
		cfg:      cfg,
		log:      log,
		counters: counters,
		slots:    slots,
		resetCh:  make(chan int, cfg.Peers),
	}

	if cfg.Role == config.RoleServer {
		conn, err := bindUDP(cfg.LocalIP, cfg.ListenPort)
		if err != nil {
			return nil, errcode.New(errcode.BindListener, err)
		}
		s.admissionConn = conn

		for i, slot := range slots {
			h, herr := NewServerHandler(cfg, i, slot, conn, s.peerLog(i), counters, s.resetCh)
			if herr != nil {
				s.closeAll()
				return nil, herr
			}
			s.handlers = append(s.handlers, h)
		}
		return s, nil
	}

	for i, slot := range slots {
		h, herr := NewClientHandler(cfg, i, slot, s.peerLog(i), counters, s.resetCh)
		if herr != nil {
			s.closeAll()
			return nil, herr
		}
		s.handlers = append(s.handlers, h)
	}
	return s, nil
}

func (s *Supervisor) peerLog(index int) logging.Logger {
	return s.log.WithFields(logging.Fields{"peer": index + 1})
}

func (s *Supervisor) closeAll() {
	for _, h := range s.handlers {
		h.Close()
	}
	if s.admissionConn != nil {
		s.admissionConn.Close()
	}
}

// Run starts every worker and blocks until ctx is done, then tears every
// socket down, joins every worker, and logs the final statistics footer.
// The caller is expected to derive ctx from a signal.NotifyContext so that
// SIGINT/SIGTERM triggers this shutdown path.
func (s *Supervisor) Run(ctx context.Context) {
	var g errgroup.Group

	// child processes started barrier: the admission worker does not begin
	// its receive loop until every handler goroutine below has been
	// scheduled. Each goroutine counts itself done before calling h.Run, so
	// the barrier does not wait for that slot's ServerHandshake to be
	// running; a RemotePeer flag set before the handshake starts makes it
	// return at once without learning TunnelTarget. Grounded on the original's child_proc_started_event, a
	// threading.Event set once every RemotePeerHandler process is started
	// and waited on by the server's admission loop before it reads.
	var started sync.WaitGroup
	started.Add(len(s.handlers))
	startedCh := make(chan struct{})
	go func() {
		started.Wait()
		close(startedCh)
	}()

	if s.cfg.Role == config.RoleServer {
		g.Go(func() error {
			AdmissionWorker(ctx, s.admissionConn, s.slots, s.cfg, s.counters, s.log, startedCh)
			return nil
		})
	}

	for _, h := range s.handlers {
		h := h
		g.Go(func() error {
			started.Done()
			h.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		s.drainResets(ctx)
		return nil
	})

	<-ctx.Done()

	for _, slot := range s.slots {
		slot.Exit.Set()
	}
	s.closeAll()

	_ = g.Wait()

	s.log.Info(s.counters.Footer())
}

func (s *Supervisor) drainResets(ctx context.Context) {
	for {
		select {
		case idx := <-s.resetCh:
			s.log.WithFields(logging.Fields{"peer": idx + 1}).Debug(fmt.Sprintf("peer slot %d reset requested", idx+1))
		case <-ctx.Done():
			return
		}
	}
}
