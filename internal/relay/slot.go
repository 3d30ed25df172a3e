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
	"net/netip"

	"github.com/sabouaram/unicaster/internal/atomicx"
)

// Slot is the per-peer state shared by every worker of one incarnation: the
// three one-shot flags, the two atomic addresses, and the two datagram
// channels. It outlives any single incarnation; Reset prepares it for the
// next one.
type Slot struct {
	Index int

	// Link is set once the keep-alive handshake completes and cleared again
	// only by Reset. Destination-facing workers wait on it before touching
	// the tunnel.
	Link *atomicx.Flag
	// RemotePeer is set once this slot has a confirmed counterpart: on the
	// client by the keep-alive handshake, on the server by the admission
	// worker recognizing the peer's address.
	RemotePeer *atomicx.Flag
	// Exit is set by any worker that decides this incarnation must be torn
	// down and restarted; every worker polls it at every suspension point.
	Exit *atomicx.Flag

	// TunnelTarget is server-only: the client's tunnel address, learned by
	// the keep-alive handshake and stored here on every handshake round
	// instead of the original's worker-local oaddr variable, so every worker
	// of the incarnation (not just the one that ran the handshake) observes
	// the same value. The client never sets it; its tunnel address is the
	// fixed configured server address held by its Handler.
	TunnelTarget atomicx.Value[netip.AddrPort]

	// PeerAddr is server-only: the original internet peer's address, written
	// only by the admission worker and consumed by the
	// server-destination-relay worker to address replies. Unused on the
	// client, whose destination-relay sends to the fixed server address.
	PeerAddr atomicx.Value[netip.AddrPort]

	// Upstream carries datagrams from the source-receive worker to the
	// source-relay worker (source_queue in the data model).
	Upstream *Channel
	// Downstream carries datagrams from the destination-receive worker to
	// the destination-relay worker (destination_queue in the data model).
	Downstream *Channel
}

// NewSlot allocates a Slot with fresh flags and channels of the given queue
// capacity.
func NewSlot(index, queueCapacity int) *Slot {
	return &Slot{
		Index:      index,
		Link:       atomicx.NewFlag(),
		RemotePeer: atomicx.NewFlag(),
		Exit:       atomicx.NewFlag(),
		Upstream:   NewChannel(queueCapacity),
		Downstream: NewChannel(queueCapacity),
	}
}

// Reset prepares the slot for its next incarnation. Must only be called
// once the owning Handler has joined every worker of the previous
// incarnation, per Flag.Reset's precondition.
func (s *Slot) Reset() {
	s.Link.Reset()
	s.RemotePeer.Reset()
	s.Exit.Reset()
	// PeerAddr is left untouched: the admission worker alone writes it, and
	// its peer table still maps this slot's peer across a reset.
	// TunnelTarget is left untouched too: the client never uses it, and the
	// server-side keep-alive handshake overwrites it on every round it runs.
}
