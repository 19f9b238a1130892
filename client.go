// Package gonats is a client for the NATS messaging protocol: core
// publish/subscribe, request/reply, and the JetStream API layer in
// the jetstream subpackage.
package gonats

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gftdcojp/gonats/header"
	"github.com/gftdcojp/gonats/internal/state"
	"github.com/gftdcojp/gonats/internal/submux"
	"github.com/gftdcojp/gonats/internal/wire"
	"github.com/gftdcojp/gonats/metrics"
	"github.com/gftdcojp/gonats/nkey"
	"github.com/gftdcojp/gonats/subject"
)

// ServerInfo is the decoded INFO payload of the connected server.
type ServerInfo = wire.ServerInfo

// Version is reported to the server in CONNECT.
const Version = "1.0.0"

const (
	langName      = "go"
	readBufSize   = 32 * 1024
	writeBufSize  = 32 * 1024
	subChanBuffer = 8192
)

// Client is a NATS connection. All methods are safe for concurrent
// use. A Client is created by Connect and stays usable across server
// restarts while its reconnection policy allows.
type Client struct {
	opts Options
	log  *zap.Logger

	machine *state.Machine
	mux     *submux.Mux[*Msg]

	mu      sync.Mutex
	conn    net.Conn
	bw      *bufio.Writer
	enc     *wire.Encoder
	servers []*serverURL
	current *serverURL

	// Request broker state. inbox is the per-connection reply
	// prefix; pending maps exact reply subjects to one-shot slots.
	inbox    string
	inboxSID string
	pending  map[string]chan *Msg

	pingsOut    int
	pongWaiters []chan error

	lastErr error

	closeCh   chan struct{}
	closeOnce sync.Once

	msgsSent   atomic.Uint64
	msgsRecvd  atomic.Uint64
	bytesSent  atomic.Uint64
	bytesRecvd atomic.Uint64
	reconnects atomic.Uint64
}

// Stats is a point-in-time snapshot of the traffic counters.
type Stats struct {
	MsgsSent   uint64
	MsgsRecvd  uint64
	BytesSent  uint64
	BytesRecvd uint64
	Reconnects uint64
}

// Connect creates a client from the options and establishes the
// first connection. The context bounds the initial dial, INFO wait,
// TLS upgrade, and CONNECT flush.
func Connect(ctx context.Context, options ...Option) (*Client, error) {
	opts := GetDefaultOptions()
	for _, opt := range options {
		if err := opt(&opts); err != nil {
			return nil, err
		}
	}
	return ConnectWithOptions(ctx, opts)
}

// ConnectWithOptions is Connect with a prebuilt Options, typically
// from config.Load.
func ConnectWithOptions(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	servers := make([]*serverURL, 0, len(opts.Servers))
	for _, raw := range opts.Servers {
		su, err := parseServerURL(raw)
		if err != nil {
			return nil, err
		}
		servers = append(servers, su)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: empty server list", ErrInvalidURL)
	}

	c := &Client{
		opts:    opts,
		log:     opts.Logger,
		machine: state.New(),
		mux:     submux.New[*Msg](opts.Logger),
		servers: servers,
		pending: make(map[string]chan *Msg),
		closeCh: make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect drives Disconnected → Connecting → Connected across the
// server list.
func (c *Client) connect(ctx context.Context) error {
	if !c.machine.Apply(state.EvConnect, nil, 0) {
		if c.machine.Kind() == state.Closed {
			return ErrConnectionClosed
		}
		return fmt.Errorf("nats: connect not valid in state %s", c.machine.Kind())
	}

	var lastErr error
	for _, su := range c.servers {
		if err := ctx.Err(); err != nil {
			c.machine.Apply(state.EvDisconnected, nil, 0)
			return err
		}
		if err := c.connectToServer(ctx, su); err != nil {
			c.log.Warn("connect attempt failed",
				zap.String("server", su.String()), zap.Error(err))
			lastErr = err
			continue
		}
		return nil
	}

	c.machine.Apply(state.EvDisconnected, nil, 0)
	if lastErr == nil {
		return ErrNoServers
	}
	return errors.Join(ErrNoServers, lastErr)
}

// connectToServer performs the full handshake against one server:
// TCP dial, INFO wait, optional TLS upgrade, CONNECT+PING flush,
// PONG wait. On success the read loop and keepalive are running.
func (c *Client) connectToServer(ctx context.Context, su *serverURL) error {
	dialer := &net.Dialer{Timeout: c.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", su.addr())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", su.String(), err)
	}

	parser := wire.NewParser()
	info, err := c.awaitInfo(ctx, conn, parser)
	if err != nil {
		conn.Close()
		return err
	}

	wantTLS := su.tls || c.opts.TLS.Enabled || info.TLSRequired
	if info.TLSRequired && !su.tls && !c.opts.TLS.Enabled {
		conn.Close()
		return ErrTLSRequired
	}
	if wantTLS {
		// During a reconnect the machine sits in Reconnecting and the
		// TLS events are no-ops; during first connect it walks
		// Connecting → TLSHandshake → Connecting.
		entered := c.machine.Apply(state.EvTLSRequired, nil, 0)
		tlsConn, err := c.upgradeTLS(ctx, conn, su)
		if err != nil {
			conn.Close()
			if entered {
				// Recover to Connecting so the next server in the
				// list can still be attempted.
				c.machine.ForceSet(state.Connecting, nil, 0)
			}
			return err
		}
		conn = tlsConn
		if entered {
			c.machine.Apply(state.EvTLSComplete, nil, 0)
		}
	}

	bw := bufio.NewWriterSize(conn, writeBufSize)
	enc := wire.NewEncoder(bw)

	connectInfo, err := c.buildConnectInfo(su, info)
	if err != nil {
		conn.Close()
		return err
	}
	if err := enc.Connect(connectInfo); err != nil {
		conn.Close()
		return err
	}
	// A PING/PONG round trip confirms the server accepted CONNECT;
	// an auth rejection arrives as -ERR instead of the PONG.
	if err := enc.Ping(); err != nil {
		conn.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		conn.Close()
		return err
	}
	if err := c.awaitPong(ctx, conn, parser); err != nil {
		conn.Close()
		return err
	}
	// The handshake read deadline must not carry over to the read loop.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return err
	}

	if !c.machine.Apply(state.EvConnected, &info, 0) {
		conn.Close()
		return ErrConnectionClosed
	}

	c.mu.Lock()
	c.conn = conn
	c.bw = bw
	c.enc = enc
	c.current = su
	c.pingsOut = 0
	c.mu.Unlock()

	c.log.Info("connected",
		zap.String("server", su.String()),
		zap.String("server_id", info.ServerID),
		zap.Bool("jetstream", info.JetStream))

	go c.readLoop(conn, parser)
	go c.pingLoop(conn)
	return nil
}

// awaitInfo reads from the raw socket until the server's INFO frame
// arrives.
func (c *Client) awaitInfo(ctx context.Context, conn net.Conn, parser *wire.Parser) (wire.ServerInfo, error) {
	op, err := c.awaitOp(ctx, conn, parser)
	if err != nil {
		return wire.ServerInfo{}, err
	}
	info, ok := op.(wire.InfoOp)
	if !ok {
		return wire.ServerInfo{}, &wire.InvalidMessageError{Reason: fmt.Sprintf("expected INFO, got %T", op)}
	}
	return info.Info, nil
}

// awaitPong consumes frames until the CONNECT handshake's PONG. A
// -ERR before the PONG fails the handshake.
func (c *Client) awaitPong(ctx context.Context, conn net.Conn, parser *wire.Parser) error {
	for {
		op, err := c.awaitOp(ctx, conn, parser)
		if err != nil {
			return err
		}
		switch op := op.(type) {
		case wire.PongOp:
			return nil
		case wire.ErrOp:
			return c.classifyServerError(op.Message)
		case wire.OKOp, wire.PingOp, wire.InfoOp:
			// Harmless during the handshake.
		default:
			return &wire.InvalidMessageError{Reason: fmt.Sprintf("unexpected %T before PONG", op)}
		}
	}
}

func (c *Client) awaitOp(ctx context.Context, conn net.Conn, parser *wire.Parser) (wire.ServerOp, error) {
	deadline := time.Now().Add(c.opts.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	buf := make([]byte, readBufSize)
	for {
		if op, err := parser.Next(); err != nil {
			return nil, err
		} else if op != nil {
			return op, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, &TimeoutError{Operation: "connect handshake", After: c.opts.ConnectTimeout}
			}
			return nil, err
		}
	}
}

func (c *Client) upgradeTLS(ctx context.Context, conn net.Conn, su *serverURL) (net.Conn, error) {
	cfg, err := c.buildTLSConfig(su)
	if err != nil {
		return nil, &TLSError{Reason: "configuration failed", Err: err}
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, &TLSError{Reason: "handshake failed", Err: err}
	}
	return tlsConn, nil
}

func (c *Client) buildTLSConfig(su *serverURL) (*tls.Config, error) {
	if c.opts.TLS.Config != nil {
		return c.opts.TLS.Config.Clone(), nil
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.opts.TLS.InsecureSkipVerify,
		ServerName:         su.host,
	}
	if c.opts.TLS.MinVersion != 0 {
		cfg.MinVersion = c.opts.TLS.MinVersion
	}
	if c.opts.TLS.ServerName != "" {
		cfg.ServerName = c.opts.TLS.ServerName
	}
	if c.opts.TLS.CAFile != "" {
		pem, err := os.ReadFile(c.opts.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", c.opts.TLS.CAFile)
		}
		cfg.RootCAs = pool
	}
	if c.opts.TLS.CertFile != "" && c.opts.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.opts.TLS.CertFile, c.opts.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// buildConnectInfo assembles the CONNECT payload, resolving auth.
// URL user-info takes precedence over configured auth.
func (c *Client) buildConnectInfo(su *serverURL, info wire.ServerInfo) (*wire.ConnectInfo, error) {
	ci := &wire.ConnectInfo{
		Verbose:      c.opts.Verbose,
		Pedantic:     c.opts.Pedantic,
		TLSRequired:  su.tls || c.opts.TLS.Enabled,
		Echo:         c.opts.Echo,
		Headers:      true,
		NoResponders: true,
		Protocol:     1,
		Name:         c.opts.Name,
		Lang:         langName,
		Version:      Version,
	}

	switch {
	case su.user != "":
		ci.User, ci.Pass = su.user, su.pass
	case su.token != "":
		ci.AuthToken = su.token
	default:
		if err := c.applyConfiguredAuth(ci, info); err != nil {
			return nil, err
		}
	}
	return ci, nil
}

func (c *Client) applyConfiguredAuth(ci *wire.ConnectInfo, info wire.ServerInfo) error {
	auth := c.opts.auth
	if auth.credsFile != "" {
		creds, err := nkey.LoadCredentials(auth.credsFile)
		if err != nil {
			return err
		}
		auth.jwt, auth.seed = creds.JWT, creds.Seed
	}

	switch {
	case auth.token != "":
		ci.AuthToken = auth.token
	case auth.user != "":
		ci.User, ci.Pass = auth.user, auth.pass
	case auth.seed != "":
		kp, err := nkey.FromSeed(auth.seed)
		if err != nil {
			return err
		}
		ci.NKey = kp.PublicKey()
		ci.JWT = auth.jwt
		if info.Nonce != "" {
			sig, err := kp.Sign([]byte(info.Nonce))
			if err != nil {
				return err
			}
			ci.Signature = base64.RawURLEncoding.EncodeToString(sig)
		}
	}
	return nil
}

func (c *Client) classifyServerError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "authorization") || strings.Contains(lower, "authentication"):
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, msg)
	case strings.Contains(lower, "permissions violation"):
		return fmt.Errorf("%w: %s", ErrPermissionViolation, msg)
	case strings.Contains(lower, "stale connection"):
		return ErrStaleConnection
	case strings.Contains(lower, "server shutdown"):
		return ErrServerShutdown
	default:
		return &ServerError{Message: msg}
	}
}

// readLoop pumps the socket into the parser and dispatches server
// operations until the connection dies.
func (c *Client) readLoop(conn net.Conn, parser *wire.Parser) {
	// Frames read together with the handshake PONG are already in the
	// parser; dispatch them before waiting on the socket.
	if perr := c.dispatchAll(parser); perr != nil {
		c.log.Error("protocol error", zap.Error(perr))
		c.handleDisconnect(conn, perr)
		return
	}
	buf := make([]byte, readBufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
			if perr := c.dispatchAll(parser); perr != nil {
				c.log.Error("protocol error", zap.Error(perr))
				c.handleDisconnect(conn, perr)
				return
			}
		}
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
	}
}

func (c *Client) dispatchAll(parser *wire.Parser) error {
	for {
		op, err := parser.Next()
		if err != nil {
			return err
		}
		if op == nil {
			return nil
		}
		c.dispatch(op)
	}
}

func (c *Client) dispatch(op wire.ServerOp) {
	switch op := op.(type) {
	case wire.PingOp:
		c.mu.Lock()
		if c.enc != nil {
			c.enc.Pong()
			c.bw.Flush()
		}
		c.mu.Unlock()

	case wire.PongOp:
		c.mu.Lock()
		c.pingsOut = 0
		waiters := c.pongWaiters
		c.pongWaiters = nil
		c.mu.Unlock()
		for _, w := range waiters {
			w <- nil
		}

	case wire.OKOp:
		// Verbose-mode acknowledgement.

	case wire.ErrOp:
		err := c.classifyServerError(op.Message)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.log.Warn("server error", zap.String("message", op.Message))

	case wire.InfoOp:
		// Asynchronous INFO update; connect_urls may change on
		// cluster topology changes, which this client does not chase.
		c.log.Debug("async INFO", zap.String("server_id", op.Info.ServerID))

	case wire.MsgOp:
		c.routeMsg(op)
	}
}

func (c *Client) routeMsg(op wire.MsgOp) {
	c.msgsRecvd.Add(1)
	c.bytesRecvd.Add(uint64(len(op.Payload)))
	if c.opts.MetricsEnabled {
		metrics.MessagesReceived.Inc()
		metrics.BytesReceived.Add(float64(len(op.Payload)))
	}

	msg := &Msg{Subject: op.Subject, Reply: op.Reply, Headers: op.Headers, Payload: op.Payload}

	// Replies to in-flight requests route by exact reply subject.
	c.mu.Lock()
	if c.inbox != "" && strings.HasPrefix(op.Subject, c.inbox+".") {
		slot, ok := c.pending[op.Subject]
		if ok {
			delete(c.pending, op.Subject)
		}
		c.mu.Unlock()
		if ok {
			slot <- msg
		}
		return
	}
	c.mu.Unlock()

	if c.mux.Deliver(op.SID, msg) == submux.Unknown {
		c.log.Debug("message for unknown sid",
			zap.String("sid", op.SID), zap.String("subject", op.Subject))
	}
}

// pingLoop emits keepalive PINGs and declares the connection stale
// when too many go unanswered.
func (c *Client) pingLoop(conn net.Conn) {
	if c.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		c.pingsOut++
		if c.pingsOut > c.opts.MaxPingsOut {
			c.lastErr = ErrStaleConnection
			c.mu.Unlock()
			c.log.Warn("stale connection, closing socket")
			conn.Close()
			return
		}
		c.enc.Ping()
		c.bw.Flush()
		c.mu.Unlock()
		if c.opts.MetricsEnabled {
			metrics.PingsSent.Inc()
		}
	}
}

// handleDisconnect reacts to a dead socket: either the close was
// requested, or the reconnection loop takes over, or the client
// terminates.
func (c *Client) handleDisconnect(conn net.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		// A newer connection superseded this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.enc = nil
	c.bw = nil
	if c.lastErr == nil {
		c.lastErr = cause
	}
	waiters := c.pongWaiters
	c.pongWaiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w <- ErrNotConnected
	}

	switch c.machine.Kind() {
	case state.Closed:
		return
	case state.Draining:
		// Drain owns shutdown; the socket closing ends it.
		c.machine.Apply(state.EvDisconnected, nil, 0)
		return
	}

	wasActive := c.machine.IsActive()
	if wasActive && c.opts.Reconnect.Enabled {
		c.log.Warn("connection lost, reconnecting", zap.Error(cause))
		go c.reconnectLoop()
		return
	}

	c.machine.Apply(state.EvDisconnected, nil, 0)
	c.failPending(ErrConnectionClosed)
}

// reconnectLoop retries per the policy until it succeeds, is
// cancelled, or exhausts its attempts.
func (c *Client) reconnectLoop() {
	policy := c.opts.Reconnect
	for attempt := 1; ; attempt++ {
		if !policy.ShouldContinue(attempt) {
			c.log.Error("reconnect attempts exhausted", zap.Int("attempts", attempt-1))
			c.machine.Apply(state.EvClose, nil, 0)
			c.failPending(&MaxReconnectsError{Attempts: attempt - 1})
			c.shutdown()
			return
		}
		if !c.machine.Apply(state.EvReconnecting, nil, attempt) {
			return // Closed (or otherwise moved on) while we raced.
		}

		delay := policy.NextDelay(attempt)
		select {
		case <-c.closeCh:
			return
		case <-time.After(delay):
		}
		select {
		case <-c.closeCh:
			return
		default:
		}

		err := c.tryReconnect()
		if err == nil {
			c.reconnects.Add(1)
			if c.opts.MetricsEnabled {
				metrics.Reconnects.Inc()
			}
			c.log.Info("reconnected", zap.Int("attempts", attempt))
			return
		}
		c.log.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))
	}
}

func (c *Client) tryReconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
	defer cancel()

	var lastErr error
	for _, su := range c.servers {
		if err := c.connectToServer(ctx, su); err != nil {
			lastErr = err
			continue
		}
		if err := c.resubscribeAll(); err != nil {
			return err
		}
		return nil
	}
	if lastErr == nil {
		lastErr = ErrNoServers
	}
	return lastErr
}

// resubscribeAll re-emits SUB for the inbox wildcard and every live
// subscription, in registration order.
func (c *Client) resubscribeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc == nil {
		return ErrNotConnected
	}
	if c.inboxSID != "" {
		if err := c.enc.Sub(c.inbox+".>", "", c.inboxSID); err != nil {
			return err
		}
	}
	for _, sub := range c.mux.Snapshot() {
		if err := c.enc.Sub(sub.Subject, sub.Queue, sub.SID); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

// opError translates the current state into the error a new
// operation should get.
func (c *Client) opError() error {
	switch c.machine.Kind() {
	case state.Connected:
		return nil
	case state.Closed:
		return ErrConnectionClosed
	case state.Draining:
		return ErrConnectionDraining
	default:
		return ErrNotConnected
	}
}

// Publish sends payload to subj, fire-and-forget.
func (c *Client) Publish(subj string, payload []byte) error {
	return c.publish(subj, "", nil, payload)
}

// PublishMsg sends a message with optional reply and headers.
func (c *Client) PublishMsg(msg *Msg) error {
	return c.publish(msg.Subject, msg.Reply, msg.Headers, msg.Payload)
}

// PublishWithReply sends payload to subj carrying a reply-to
// subject.
func (c *Client) PublishWithReply(subj, reply string, payload []byte) error {
	return c.publish(subj, reply, nil, payload)
}

func (c *Client) publish(subj, reply string, hdr *header.Headers, payload []byte) error {
	if err := subject.ValidatePublish(subj); err != nil {
		return err
	}
	if reply != "" {
		if err := subject.ValidatePublish(reply); err != nil {
			return err
		}
	}
	if err := c.opError(); err != nil {
		return err
	}

	if max := c.maxPayload(); max > 0 && int64(len(payload)) > max {
		return &PayloadTooLargeError{Size: len(payload), Max: max}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc == nil {
		return ErrNotConnected
	}

	var err error
	if hdr != nil && (hdr.Len() > 0 || hdr.Status() != 0) {
		err = c.enc.HPub(subj, reply, hdr, payload)
	} else {
		err = c.enc.Pub(subj, reply, payload)
	}
	if err != nil {
		return err
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}

	c.msgsSent.Add(1)
	c.bytesSent.Add(uint64(len(payload)))
	if c.opts.MetricsEnabled {
		metrics.MessagesSent.Inc()
		metrics.BytesSent.Add(float64(len(payload)))
	}
	return nil
}

func (c *Client) maxPayload() int64 {
	if c.opts.MaxPayload > 0 {
		return c.opts.MaxPayload
	}
	if info := c.machine.ServerInfo(); info != nil {
		return info.MaxPayload
	}
	return 0
}

// Flush performs a PING/PONG round trip, confirming every previously
// written operation reached the server.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.opError(); err != nil {
		return err
	}

	waiter := make(chan error, 1)
	c.mu.Lock()
	if c.enc == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pongWaiters = append(c.pongWaiters, waiter)
	c.enc.Ping()
	err := c.bw.Flush()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case err := <-waiter:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return ErrConnectionClosed
	}
}

// NewInbox mints a unique reply subject under the configured inbox
// prefix, outside the request broker's per-connection namespace.
func (c *Client) NewInbox() string {
	return subject.NewInbox(c.opts.InboxPrefix)
}

// ConnectedURL returns the sanitized URL of the current server, or
// "" when not connected.
func (c *Client) ConnectedURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.current == nil {
		return ""
	}
	return c.current.String()
}

// ConnectedServerInfo returns the INFO of the current server, or nil
// when not connected.
func (c *Client) ConnectedServerInfo() *ServerInfo {
	return c.machine.ServerInfo()
}

// Status reports the lifecycle state as a string.
func (c *Client) Status() string {
	return c.machine.Kind().String()
}

// IsConnected reports whether new operations are currently accepted.
func (c *Client) IsConnected() bool {
	return c.machine.CanAcceptOperations()
}

// IsClosed reports whether the client reached its terminal state.
func (c *Client) IsClosed() bool {
	return c.machine.Kind() == state.Closed
}

// LastError returns the last recorded error. A server -ERR or a
// stale-connection detection always replaces it; a transport error or
// close cause is recorded only when no error was recorded before.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns a snapshot of the traffic counters.
func (c *Client) Stats() Stats {
	return Stats{
		MsgsSent:   c.msgsSent.Load(),
		MsgsRecvd:  c.msgsRecvd.Load(),
		BytesSent:  c.bytesSent.Load(),
		BytesRecvd: c.bytesRecvd.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// Drain stops accepting new operations, waits up to the drain
// timeout for in-flight work, then closes the client.
func (c *Client) Drain(ctx context.Context) error {
	if !c.machine.IsActive() {
		return c.opError()
	}
	if !c.machine.Apply(state.EvDrain, nil, 0) {
		return c.opError()
	}

	// Unsubscribe everything so the server stops sending, then let
	// in-flight traffic and pending requests settle.
	c.mu.Lock()
	if c.enc != nil {
		for _, sub := range c.mux.Snapshot() {
			c.enc.Unsub(sub.SID, 0)
		}
		c.bw.Flush()
	}
	c.mu.Unlock()

	deadline := time.Now().Add(c.opts.DrainTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		remaining := len(c.pending)
		c.mu.Unlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			c.log.Warn("drain timeout with requests still pending",
				zap.Int("pending", remaining))
			break
		}
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-c.closeCh:
			return nil
		case <-ticker.C:
		}
	}

	return c.Close()
}

// Close terminates the client: the state machine reaches Closed,
// every subscription channel is closed, every pending request fails
// with ErrConnectionClosed, and the socket is torn down. Close is
// idempotent.
func (c *Client) Close() error {
	if !c.machine.Apply(state.EvClose, nil, 0) {
		return nil // already closed
	}
	c.failPending(ErrConnectionClosed)
	c.shutdown()
	c.log.Info("connection closed")
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closeCh) })
	c.mux.FinishAll()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.enc = nil
	c.bw = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// failPending drops every outstanding request slot; their waiters
// observe the closed channel and return ErrConnectionClosed. err is
// recorded as the last error only when none was recorded before.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	slots := c.pending
	c.pending = make(map[string]chan *Msg)
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()
	for _, slot := range slots {
		close(slot)
	}
}
