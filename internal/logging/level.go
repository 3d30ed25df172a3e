/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package logging is a small structured-logging wrapper around logrus, scoped
// to what the relay needs: per-slot field context and a quiet level for -q.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level mirrors the teacher's logger/level vocabulary, trimmed to what the
// relay ever emits, plus a Silent level backing the -q flag.
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	// SilentLevel discards every entry; used when -q is passed.
	SilentLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warning"
	case ErrorLevel:
		return "error"
	case SilentLevel:
		return "silent"
	default:
		return "unknown"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.PanicLevel
	}
}

// ParseLevel returns the Level matching the given string (case-insensitive,
// substring-tolerant like the teacher's GetLevelString), defaulting to Info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains("debug", s) && s != "":
		return DebugLevel
	case strings.Contains("warning", s) && s != "":
		return WarnLevel
	case strings.Contains("error", s) && s != "":
		return ErrorLevel
	case strings.Contains("silent", s) && s != "":
		return SilentLevel
	default:
		return InfoLevel
	}
}
