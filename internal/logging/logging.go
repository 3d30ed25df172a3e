/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is a small chainable key/value set attached to a log entry, e.g.
// slot index, role, and direction — mirroring the teacher's logger/fields
// API without the generic context-store machinery the full library carries.
type Fields map[string]any

// With returns a copy of f with key/val added, leaving f untouched.
func (f Fields) With(key string, val any) Fields {
	n := make(Fields, len(f)+1)
	for k, v := range f {
		n[k] = v
	}
	n[key] = val
	return n
}

func (f Fields) logrus() logrus.Fields {
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		lf[k] = v
	}
	return lf
}

// Logger is the logging surface every relay component depends on.
type Logger interface {
	WithFields(f Fields) Logger
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	SetLevel(l Level)
}

type logger struct {
	mu  sync.RWMutex
	lvl Level
	log *logrus.Logger
	fld Fields
}

// New builds a Logger writing to w (os.Stderr in practice) at the given
// level. SilentLevel swaps the output for io.Discard so every call site
// stays uniform instead of branching on -q.
func New(lvl Level, w io.Writer) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if lvl == SilentLevel {
		l.SetOutput(io.Discard)
		l.SetLevel(logrus.PanicLevel)
	} else {
		if w == nil {
			w = os.Stderr
		}
		l.SetOutput(w)
		l.SetLevel(lvl.logrus())
	}

	return &logger{lvl: lvl, log: l, fld: Fields{}}
}

func (o *logger) SetLevel(l Level) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lvl = l
	if l == SilentLevel {
		o.log.SetOutput(io.Discard)
		o.log.SetLevel(logrus.PanicLevel)
	} else {
		o.log.SetOutput(os.Stderr)
		o.log.SetLevel(l.logrus())
	}
}

func (o *logger) WithFields(f Fields) Logger {
	o.mu.RLock()
	base := o.fld
	o.mu.RUnlock()

	merged := make(Fields, len(base)+len(f))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}

	return &logger{lvl: o.lvl, log: o.log, fld: merged}
}

func (o *logger) Debug(msg string, args ...any) {
	o.log.WithFields(o.fld.logrus()).Debugf(msg, args...)
}

func (o *logger) Info(msg string, args ...any) {
	o.log.WithFields(o.fld.logrus()).Infof(msg, args...)
}

func (o *logger) Warn(msg string, args ...any) {
	o.log.WithFields(o.fld.logrus()).Warnf(msg, args...)
}

func (o *logger) Error(msg string, args ...any) {
	o.log.WithFields(o.fld.logrus()).Errorf(msg, args...)
}
