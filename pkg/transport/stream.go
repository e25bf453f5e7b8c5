// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Dial connects to a server listening on a network stream.
func Dial(ctx context.Context, network, address string) (Transport, error) {
	if address == "" {
		return nil, errors.New("stream transport requires an address")
	}
	if network == "" {
		network = "tcp"
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return NewStream(conn), nil
}

// NewStream wraps an established stream. Closing the transport closes rwc.
func NewStream(rwc io.ReadWriteCloser) Transport {
	return newLineTransport(KindStream, rwc, rwc, rwc.Close)
}

// NewReadWriter wraps a separate reader and writer, such as a process's own
// standard input and output. closer may be nil.
func NewReadWriter(r io.Reader, w io.Writer, closer io.Closer) Transport {
	var closeFn func() error
	if closer != nil {
		closeFn = closer.Close
	}
	return newLineTransport(KindStdio, r, w, closeFn)
}

// NewPipe returns two connected in-memory transports. Whatever one side
// writes, the other side reads.
func NewPipe() (Transport, Transport) {
	aReader, bWriter := io.Pipe()
	bReader, aWriter := io.Pipe()

	a := newLineTransport(KindStream, aReader, aWriter, func() error {
		_ = aReader.Close()
		return aWriter.Close()
	})
	b := newLineTransport(KindStream, bReader, bWriter, func() error {
		_ = bReader.Close()
		return bWriter.Close()
	})
	return a, b
}
