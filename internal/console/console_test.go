// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/vrlaunch/internal/console"
)

// serve starts a TCP listener that writes payload to the first connection
// and then optionally closes it.
func serve(t *testing.T, payload []byte, closeConn bool) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		_, _ = conn.Write(payload)

		if closeConn {
			_ = conn.Close()
		} else {
			// Keep the connection open until the test is done.
			buf := make([]byte, 1)
			_, _ = conn.Read(buf)
			_ = conn.Close()
		}
	}()

	return listener.Addr().String()
}

func TestClientReadLine(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected []string
	}{
		{
			name:     "crlf lines",
			payload:  []byte("first line\r\nsecond line\r\n"),
			expected: []string{"first line", "second line"},
		},
		{
			name:     "cr and nul bytes are discarded",
			payload:  []byte("first line\r\x00\nsecond line\r\n"),
			expected: []string{"first line", "second line"},
		},
		{
			name: "telnet negotiation is stripped",
			payload: []byte{
				0xff, 0xfb, 0x01, // IAC WILL ECHO
				0xff, 0xfd, 0x03, // IAC DO SUPPRESS-GO-AHEAD
				'o', 'k', '\r', '\n',
			},
			expected: []string{"ok"},
		},
		{
			name: "escaped iac data byte",
			payload: []byte{
				'a', 0xff, 0xff, 'b', '\r', '\n',
			},
			expected: []string{"a\xffb"},
		},
		{
			name:     "prompt without line break",
			payload:  []byte("Username: "),
			expected: []string{"Username: "},
		},
		{
			name:     "line then prompt",
			payload:  []byte("booted\r\nrouter# "),
			expected: []string{"booted", "router# "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := serve(t, tt.payload, false)

			client, err := console.Open(testContext(t), addr)
			require.NoError(t, err)

			t.Cleanup(func() { _ = client.Close() })

			for _, expected := range tt.expected {
				line, err := client.ReadLine(time.Second)
				require.NoError(t, err)
				assert.Equal(t, expected, line)
			}
		})
	}
}

func TestClientReadLineTimeout(t *testing.T) {
	addr := serve(t, nil, false)

	client, err := console.Open(testContext(t), addr)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	_, err = client.ReadLine(50 * time.Millisecond)
	assert.ErrorIs(t, err, console.ErrReadTimeout)
}

func TestClientReadLineDisconnected(t *testing.T) {
	addr := serve(t, []byte("half a line"), true)

	client, err := console.Open(testContext(t), addr)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	// The connection drops without a line break; the buffered data is not
	// a prompt because the peer is gone.
	for {
		_, err = client.ReadLine(time.Second)
		if err != nil {
			break
		}
	}

	assert.ErrorIs(t, err, console.ErrDisconnected)
}

func TestClientWriteLine(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	received := make(chan []byte, 1)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]

		_ = conn.Close()
	}()

	client, err := console.Open(testContext(t), listener.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.WriteLine("show version"))

	select {
	case data := <-received:
		assert.Equal(t, "show version\r", string(data))
	case <-time.After(time.Second):
		t.Fatal("peer did not receive data")
	}
}

func TestOpenRefused(t *testing.T) {
	// Reserve a port and close it again, so nothing listens on it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithTimeout(testContext(t), 100*time.Millisecond)
	defer cancel()

	_, err = console.Open(ctx, addr)
	assert.Error(t, err)
}
