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

// Direction is the D trit of the RDS mode encoding: which side of the
// tunnel a worker faces.
type Direction uint8

const (
	// Source faces the peer/server side of the tunnel.
	Source Direction = iota
	// Destination faces the endpoint/client side of the tunnel.
	Destination
)

func (d Direction) String() string {
	if d == Destination {
		return "destination"
	}
	return "source"
}

// Stage is the S trit of the RDS mode encoding: what the worker does with
// the datagram.
type Stage uint8

const (
	Receive Stage = iota
	Relay
)

func (s Stage) String() string {
	if s == Relay {
		return "relay"
	}
	return "receive"
}

// Mode names one (role, direction, stage) worker, e.g. "server-destination-relay".
// The receive and relay workers branch on it to pick their socket role,
// channel and handshake, and it labels their log lines; the RDS trit
// encoding itself never crosses the wire, unlike the byte-string mode tag
// it replaces.
type Mode struct {
	Role config.Role
	Dir  Direction
	St   Stage
}

func (m Mode) String() string {
	return string(m.Role) + "-" + m.Dir.String() + "-" + m.St.String()
}
