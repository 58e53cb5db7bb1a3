// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package console provides a line-oriented client for QEMU's telnet serial
// console endpoints.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// connectAttempts is the number of dial attempts before giving up. The
	// endpoint appears shortly after QEMU starts, so a few retries suffice.
	connectAttempts = 5

	// connectRetryDelay is the delay between dial attempts.
	connectRetryDelay = time.Second
)

// Telnet protocol bytes QEMU's telnet server uses for option negotiation.
// Negotiation is ignored, the raw byte stream is all that is needed.
const (
	telnetIAC  = 0xff
	telnetSB   = 0xfa
	telnetSE   = 0xf0
	telnetWill = 0xfb
	telnetDont = 0xfe
)

// Client is a connection to one serial console endpoint.
//
// Reads are line based with a mandatory per-call timeout. Telnet option
// negotiation bytes are stripped from the stream transparently. A timed-out
// read returns buffered partial data as a line, which is how prompts
// without a trailing line break are observed.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	pending  []byte
	inSubNeg bool

	closeOnce sync.Once
}

// Open connects to the console endpoint at the given address.
//
// QEMU opens the listener asynchronously after process start, so refused
// connections are retried a few times before failing.
func Open(ctx context.Context, addr string) (*Client, error) {
	var dialErr error

	dialer := &net.Dialer{}

	for attempt := 0; attempt < connectAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			slog.Debug("Connected to console", slog.String("addr", addr))

			return &Client{
				conn:   conn,
				reader: bufio.NewReader(conn),
			}, nil
		}

		dialErr = err

		slog.Debug("Console connect attempt failed",
			slog.String("addr", addr),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect console %s: %w", addr, ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}

	return nil, fmt.Errorf("connect console %s: %w", addr, dialErr)
}

// ReadLine returns the next line from the console, without its line ending.
//
// Prompts do not end in a line break, so if the timeout expires with
// partial data buffered, that data is returned as a line. [ErrReadTimeout]
// is only returned for a completely silent console. [ErrDisconnected] is
// returned if the transport dropped.
func (c *Client) ReadLine(timeout time.Duration) (string, error) {
	err := c.conn.SetReadDeadline(time.Now().Add(timeout))
	if err != nil {
		return "", ErrDisconnected
	}

	for {
		b, err := c.readDataByte()
		if err != nil {
			err = mapReadError(err)

			if errors.Is(err, ErrReadTimeout) && len(c.pending) > 0 {
				line := string(c.pending)
				c.pending = c.pending[:0]

				return line, nil
			}

			return "", err
		}

		switch b {
		case '\n':
			line := string(c.pending)
			c.pending = c.pending[:0]

			return line, nil
		case '\r', 0x00:
			// Guests terminate lines with CRLF or CR NUL.
		default:
			c.pending = append(c.pending, b)
		}
	}
}

// WriteLine sends the given text terminated with a carriage return, the
// line ending vendor consoles expect.
func (c *Client) WriteLine(text string) error {
	_, err := c.conn.Write(append([]byte(text), '\r'))
	if err != nil {
		return mapReadError(err)
	}

	return nil
}

// Close closes the connection. It is safe to call multiple times.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})

	return err
}

// readDataByte reads the next byte from the stream, skipping telnet
// negotiation sequences.
func (c *Client) readDataByte() (byte, error) {
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return 0, err //nolint:wrapcheck
		}

		if c.inSubNeg {
			if b == telnetSE {
				c.inSubNeg = false
			}

			continue
		}

		if b != telnetIAC {
			return b, nil
		}

		cmd, err := c.reader.ReadByte()
		if err != nil {
			return 0, err //nolint:wrapcheck
		}

		switch {
		case cmd == telnetIAC:
			// Escaped 0xff data byte.
			return telnetIAC, nil
		case cmd == telnetSB:
			c.inSubNeg = true
		case cmd >= telnetWill && cmd <= telnetDont:
			// Option negotiation carries one option byte.
			_, err := c.reader.ReadByte()
			if err != nil {
				return 0, err //nolint:wrapcheck
			}
		}
	}
}

func mapReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrReadTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return ErrDisconnected
	}

	return fmt.Errorf("%w: %w", ErrDisconnected, err)
}
