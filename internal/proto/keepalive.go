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

// Package proto holds the reserved keep-alive payloads shared by both
// instance roles. They are exported from a single place, byte-identical on
// both sides, per the design notes' "dynamic keep-alive payloads as domain
// strings" replacement.
package proto

import "bytes"

// KeepAlive is the peer-to-peer liveness ping exchanged during the
// handshake; one that arrives once the handshake is done makes the receiving
// slot reset. Its value must not plausibly collide with an application UDP
// payload.
var KeepAlive = []byte("\x00WOOKIEE-UNICASTER-PING\x00")

// KeepAliveHalt is the server-to-client signal that the handshake is
// complete and the client may stop pinging.
var KeepAliveHalt = []byte("\x00WOOKIEE-UNICASTER-HALT\x00")

// IsKeepAlive reports whether payload is exactly the keep-alive ping.
func IsKeepAlive(payload []byte) bool {
	return bytes.Equal(payload, KeepAlive)
}

// IsKeepAliveHalt reports whether payload is exactly the halt signal.
func IsKeepAliveHalt(payload []byte) bool {
	return bytes.Equal(payload, KeepAliveHalt)
}

// IsReserved reports whether payload is either reserved keep-alive datagram
// and must therefore never be forwarded to an endpoint.
func IsReserved(payload []byte) bool {
	return IsKeepAlive(payload) || IsKeepAliveHalt(payload)
}
