// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// lineTransport frames an arbitrary reader and writer as newline-terminated
// units. Every concrete transport is built on it.
type lineTransport struct {
	kind    Kind
	scanner *bufio.Scanner
	w       io.Writer
	closer  func() error

	// writeSlot admits one writer at a time. An abandoned write holds it
	// until the underlying Write returns.
	writeSlot chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newLineTransport(kind Kind, r io.Reader, w io.Writer, closer func() error) *lineTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &lineTransport{
		kind:      kind,
		scanner:   scanner,
		w:         w,
		closer:    closer,
		writeSlot: make(chan struct{}, 1),
	}
}

func (t *lineTransport) Kind() Kind {
	return t.kind
}

func (t *lineTransport) ReadLine() ([]byte, error) {
	for t.scanner.Scan() {
		line := t.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := t.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (t *lineTransport) WriteLine(ctx context.Context, line []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if bytes.IndexByte(line, '\n') >= 0 {
		return errors.New("line contains an embedded newline")
	}

	select {
	case t.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if dl, ok := t.w.(writeDeadliner); ok {
		if deadline, set := ctx.Deadline(); set && dl.SetWriteDeadline(deadline) == nil {
			defer func() { <-t.writeSlot }()
			defer func() { _ = dl.SetWriteDeadline(time.Time{}) }()
			return t.writeErr(t.w.Write(buf))
		}
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-t.writeSlot }()
		done <- t.writeErr(t.w.Write(buf))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// A partial frame may already be on the wire, so the stream is
		// unusable. Closing it also unblocks the pending Write.
		go func() { _ = t.Close() }()
		return ctx.Err()
	}
}

func (t *lineTransport) writeErr(_ int, err error) error {
	if err == nil {
		return nil
	}
	if t.closed.Load() {
		return ErrClosed
	}
	return err
}

func (t *lineTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.closer != nil {
			t.closeErr = t.closer()
		}
	})
	return t.closeErr
}
