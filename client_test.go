package gonats

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gftdcojp/gonats/internal/state"
)

// fakeServer runs a scripted NATS server for one connection and
// returns its URL.
func fakeServer(t *testing.T, script func(conn net.Conn, r *bufio.Reader)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, bufio.NewReader(conn))
	}()
	return "nats://" + ln.Addr().String()
}

// readUntil consumes lines until one with the given prefix arrives.
func readUntil(r *bufio.Reader, prefix string) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, prefix) {
			return line, nil
		}
	}
}

func TestConnectHandshake(t *testing.T) {
	gotConnect := make(chan string, 1)
	url := fakeServer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte(`INFO {"server_id":"FAKE","proto":1,"headers":true,"max_payload":1048576}` + "\r\n"))
		line, err := readUntil(r, "CONNECT ")
		if err != nil {
			return
		}
		gotConnect <- line
		if _, err := readUntil(r, "PING"); err != nil {
			return
		}
		conn.Write([]byte("PONG\r\n"))

		// Keep serving PING/PONG until the client goes away.
		for {
			if _, err := readUntil(r, "PING"); err != nil {
				return
			}
			conn.Write([]byte("PONG\r\n"))
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	nc, err := Connect(ctx, WithServers(url), WithName("handshake-test"), WithReconnect(DisabledReconnect()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	if !nc.IsConnected() {
		t.Fatalf("status = %s, want connected", nc.Status())
	}
	info := nc.ConnectedServerInfo()
	if info == nil || info.ServerID != "FAKE" {
		t.Fatalf("server info = %+v", info)
	}
	if got := nc.ConnectedURL(); got != url {
		t.Fatalf("connected URL = %q, want %q", got, url)
	}

	connect := <-gotConnect
	for _, want := range []string{`"protocol":1`, `"headers":true`, `"no_responders":true`, `"name":"handshake-test"`} {
		if !strings.Contains(connect, want) {
			t.Errorf("CONNECT missing %s: %s", want, connect)
		}
	}
}

func TestConnectTLSRequiredMismatch(t *testing.T) {
	url := fakeServer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte(`INFO {"server_id":"FAKE","tls_required":true}` + "\r\n"))
		readUntil(r, "NEVER") // hold the socket open until the client bails
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Connect(ctx, WithServers(url))
	if !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("error = %v, want ErrTLSRequired", err)
	}
	if !errors.Is(err, ErrNoServers) {
		t.Fatalf("error = %v, want ErrNoServers in the chain", err)
	}
}

func TestConnectAuthRejection(t *testing.T) {
	url := fakeServer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte(`INFO {"server_id":"FAKE","auth_required":true}` + "\r\n"))
		if _, err := readUntil(r, "PING"); err != nil {
			return
		}
		conn.Write([]byte("-ERR 'Authorization Violation'\r\n"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Connect(ctx, WithServers(url), WithToken("wrong"))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestAutoPongAndUnknownSid(t *testing.T) {
	sawPong := make(chan struct{}, 1)
	url := fakeServer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte(`INFO {"server_id":"FAKE"}` + "\r\n"))
		if _, err := readUntil(r, "PING"); err != nil {
			return
		}
		conn.Write([]byte("PONG\r\n"))

		// A message for a sid that was never subscribed must be
		// dropped without wedging the connection, and a server PING
		// must be answered.
		conn.Write([]byte("MSG ghost.subject 99 5\r\nboo!!\r\nPING\r\n"))
		if _, err := readUntil(r, "PONG"); err != nil {
			return
		}
		sawPong <- struct{}{}
		readUntil(r, "NEVER")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	nc, err := Connect(ctx, WithServers(url), WithReconnect(DisabledReconnect()))
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	select {
	case <-sawPong:
	case <-time.After(2 * time.Second):
		t.Fatal("client never answered the server PING")
	}
	if nc.Stats().MsgsRecvd != 1 {
		t.Fatalf("received counter = %d, want 1", nc.Stats().MsgsRecvd)
	}
}

func TestRequestTimeoutRemovesPending(t *testing.T) {
	url := fakeServer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte(`INFO {"server_id":"FAKE"}` + "\r\n"))
		if _, err := readUntil(r, "PING"); err != nil {
			return
		}
		conn.Write([]byte("PONG\r\n"))
		// Swallow everything else; the request never gets a reply.
		readUntil(r, "NEVER")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	nc, err := Connect(ctx, WithServers(url), WithReconnect(DisabledReconnect()),
		WithRequestTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	_, err = nc.Request(context.Background(), "svc.slow", []byte("x"))
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}

	nc.mu.Lock()
	remaining := len(nc.pending)
	nc.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("pending entries after timeout = %d, want 0", remaining)
	}

	// Explicit cancellation takes the same cleanup path.
	reqCtx, cancelReq := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := nc.Request(reqCtx, "svc.slow", nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelReq()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled request error = %v", err)
	}
	nc.mu.Lock()
	remaining = len(nc.pending)
	nc.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("pending entries after cancel = %d, want 0", remaining)
	}
}

func TestPublishValidation(t *testing.T) {
	// A client that never connected rejects operations by state, and
	// subject validation fires before any state check.
	c := &Client{machine: state.New(), pending: map[string]chan *Msg{}}
	if err := c.Publish("bad subject", nil); err == nil {
		t.Fatal("whitespace subject accepted")
	}
	if err := c.Publish("ok.subject", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("publish while disconnected = %v, want ErrNotConnected", err)
	}
}
