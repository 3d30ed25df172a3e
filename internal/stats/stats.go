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

// Package stats holds the process-wide counters of the data model: inbound
// and outbound datagram counts, and the largest inbound datagram size
// observed. They are plain atomics for the Main Supervisor's shutdown
// footer, mirrored into Prometheus gauges/counters for scraping.
package stats

import (
	"fmt"
	"sync/atomic"

	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// Counters is the process-wide accounting block described in the data
// model. One instance is owned by the Main Supervisor and shared by every
// worker through atomic increments; no lock is needed.
type Counters struct {
	inbound  atomic.Uint64
	outbound atomic.Uint64
	largest  atomic.Uint64

	cInbound  prmsdk.Counter
	cOutbound prmsdk.Counter
	gLargest  prmsdk.Gauge
}

// New builds a Counters block and registers its Prometheus collectors
// against reg. reg may be nil, in which case metrics are tracked only via
// the plain atomics (used by tests that don't care about exposition).
func New(reg prmsdk.Registerer) *Counters {
	c := &Counters{
		cInbound: prmsdk.NewCounter(prmsdk.CounterOpts{
			Name: "unicaster_datagrams_inbound_total",
			Help: "Total UDP datagrams received from remote peers.",
		}),
		cOutbound: prmsdk.NewCounter(prmsdk.CounterOpts{
			Name: "unicaster_datagrams_outbound_total",
			Help: "Total UDP datagrams relayed in the return direction, toward the remote peer.",
		}),
		gLargest: prmsdk.NewGauge(prmsdk.GaugeOpts{
			Name: "unicaster_datagram_largest_bytes",
			Help: "Largest inbound datagram size observed, in bytes.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.cInbound, c.cOutbound, c.gLargest)
	}

	return c
}

// AddInbound records one inbound datagram of the given size and updates the
// largest-size high watermark when size exceeds it.
func (c *Counters) AddInbound(size int) {
	c.inbound.Add(1)
	c.cInbound.Inc()

	s := uint64(size)
	for {
		cur := c.largest.Load()
		if s <= cur {
			break
		}
		if c.largest.CompareAndSwap(cur, s) {
			c.gLargest.Set(float64(s))
			break
		}
	}
}

// AddOutbound records one relayed datagram.
func (c *Counters) AddOutbound() {
	c.outbound.Add(1)
	c.cOutbound.Inc()
}

// Inbound returns the cumulative inbound datagram count.
func (c *Counters) Inbound() uint64 { return c.inbound.Load() }

// Outbound returns the cumulative outbound datagram count.
func (c *Counters) Outbound() uint64 { return c.outbound.Load() }

// Largest returns the largest inbound datagram size observed, in bytes.
func (c *Counters) Largest() uint64 { return c.largest.Load() }

// Footer renders the shutdown statistics line the Main Supervisor logs on
// clean exit.
func (c *Counters) Footer() string {
	return fmt.Sprintf(
		"datagrams in=%d out=%d largest=%d bytes",
		c.Inbound(), c.Outbound(), c.Largest(),
	)
}
