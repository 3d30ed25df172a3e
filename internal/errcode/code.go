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

// Package errcode enumerates the process exit codes raised by the relay's
// startup validation and bind phases. Each failure named in the error
// handling design gets its own distinct, stable code so a calling process
// manager can tell them apart without parsing log lines.
package errcode

import "fmt"

// Code is a small numeric exit code, analogous in spirit to an HTTP status
// but scoped to this program's own validation/bind taxonomy.
type Code int

const (
	// OK is the implicit success exit code; never returned by Error.
	OK Code = 0

	// RoleMissing means -m was not supplied or matched neither server nor client.
	RoleMissing Code = 10
	// RoleFlagMissing means a flag required by the selected role was absent.
	RoleFlagMissing Code = 11
	// InterfaceConflict means both -e and -l were given, or neither was.
	InterfaceConflict Code = 12
	// InterfaceResolve means -e named an interface that could not be resolved to an IPv4 address.
	InterfaceResolve Code = 13
	// InvalidIP means an IP flag failed to parse as IPv4.
	InvalidIP Code = 14
	// InvalidPort means a port flag fell outside [1024, 65535].
	InvalidPort Code = 15
	// InvalidPeerCount means -p was less than 1.
	InvalidPeerCount Code = 16
	// ConfigFileParse means the optional INI config file could not be read/parsed.
	ConfigFileParse Code = 17

	// BindListener means the server's public admission socket failed to bind.
	BindListener Code = 20
	// BindSource means a slot's source socket failed to bind.
	BindSource Code = 21
	// BindDestination means a slot's destination socket failed to bind.
	BindDestination Code = 22
)

// Error pairs a Code with the underlying cause, so callers can both log a
// human message and exit with the matching process exit code.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("exit code %d", int(e.Code))
	}
	return fmt.Sprintf("exit code %d: %v", int(e.Code), e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New wraps cause with a Code, suitable for returning up to main.
func New(c Code, cause error) *Error {
	return &Error{Code: c, Cause: cause}
}

// Newf is New with a formatted cause message.
func Newf(c Code, format string, args ...any) *Error {
	return &Error{Code: c, Cause: fmt.Errorf(format, args...)}
}
