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

import "github.com/sabouaram/unicaster/internal/config"

// SlotPorts is the set of local ports one peer slot binds or targets. The
// arithmetic matches the port-wiring section: both base ports are
// pre-incremented per slot before the first slot is wired, so slot 0 always
// lands on base+1.
type SlotPorts struct {
	SourcePort      int
	RelayPort       int
	DestinationPort int
}

// ServerSlotPorts computes the ports for server slot index (0-based).
// SourcePort is the shared admission listener, identical across every slot.
// RelayPort is the per-slot tunnel port the client dials into.
// DestinationPort is carried only for symmetry with the client side; the
// server never binds or targets it; its "destination" is always the cached
// peer address learned by the admission worker.
func ServerSlotPorts(c *config.Config, index int) SlotPorts {
	return SlotPorts{
		SourcePort:      c.ListenPort,
		RelayPort:       c.ServerBasePort + index + 1,
		DestinationPort: c.ClientBasePort + index + 1,
	}
}

// ClientSlotPorts computes the ports for client slot index (0-based).
// SourcePort is the per-slot local port dialing out to the server's matching
// RelayPort (both sides share the same number, just on different hosts).
// RelayPort is the per-slot local port facing the endpoint application.
// DestinationPort is the endpoint's single listening port, constant across
// every slot; the endpoint tells slots apart by the distinct RelayPort each
// one sends from.
func ClientSlotPorts(c *config.Config, index int) SlotPorts {
	return SlotPorts{
		SourcePort:      c.ServerBasePort + index + 1,
		RelayPort:       c.ClientBasePort + index + 1,
		DestinationPort: c.EndpointPort,
	}
}
