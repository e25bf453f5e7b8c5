// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package connection manages client sessions with MCP tool servers.
//
// A Connection owns one transport at a time, performs the initialize
// handshake, correlates responses to requests by id and recovers from
// timeouts and transport loss. A Manager owns the set of connections built
// from configuration.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// Config tunes connection behaviour. Zero fields fall back to DefaultConfig.
type Config struct {
	// HandshakeTimeout bounds the initialize exchange.
	HandshakeTimeout time.Duration
	// RequestTimeout bounds every other request.
	RequestTimeout time.Duration
	// RetryAttempts is the number of establishment attempts, including the
	// first one.
	RetryAttempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// TimeoutThreshold is the number of consecutive request timeouts after
	// which the connection is marked Degraded.
	TimeoutThreshold int
	// KeepaliveInterval enables periodic pings on Ready connections when
	// positive.
	KeepaliveInterval time.Duration
	// ClientInfo is sent in initialize.
	ClientInfo protocol.Implementation
}

// DefaultConfig returns the default connection tuning.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   30 * time.Second,
		RetryAttempts:    3,
		RetryDelay:       2 * time.Second,
		TimeoutThreshold: 3,
		ClientInfo:       protocol.Implementation{Name: "mcpagent", Version: "dev"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = d.TimeoutThreshold
	}
	if c.ClientInfo.Name == "" {
		c.ClientInfo = d.ClientInfo
	}
	return c
}

// ConfigFrom converts the file configuration. client identifies this agent
// in the initialize handshake.
func ConfigFrom(c config.ConnectionConfig, client protocol.Implementation) Config {
	return Config{
		HandshakeTimeout:  c.HandshakeTimeout.Std(),
		RequestTimeout:    c.RequestTimeout.Std(),
		RetryAttempts:     c.RetryAttempts,
		RetryDelay:        c.RetryDelay.Std(),
		TimeoutThreshold:  c.TimeoutThreshold,
		KeepaliveInterval: c.KeepaliveInterval.Std(),
		ClientInfo:        client,
	}
}

// NotificationHandler receives server notifications. Handlers run on their
// own goroutine, so they may issue requests on the connection.
type NotificationHandler func(ctx context.Context, n *protocol.Notification)

type pendingCall struct {
	method string
	issued time.Time
	done   chan *protocol.Response
}

// Connection is a client session with one tool server.
type Connection struct {
	name string
	open transport.Opener
	cfg  Config

	mu         sync.Mutex
	state      State
	tr         transport.Transport
	gen        uint64
	alive      bool
	nextID     int64
	pending    map[int64]*pendingCall
	timeouts   int
	initResult protocol.InitializeResult
	readySince time.Time
	lastErr    error

	hooksMu   sync.RWMutex
	handlers  map[string][]NotificationHandler
	listeners []StateListener

	recoverCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a disconnected connection named name. open is called once per
// establishment attempt.
func New(name string, open transport.Opener, cfg Config) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		name:      name,
		open:      open,
		cfg:       cfg.withDefaults(),
		state:     StateDisconnected,
		pending:   make(map[int64]*pendingCall),
		handlers:  make(map[string][]NotificationHandler),
		recoverCh: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Name returns the server name.
func (c *Connection) Name() string {
	return c.name
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the connection accepts calls.
func (c *Connection) Ready() bool {
	return c.State() == StateReady
}

// Capabilities returns the capabilities negotiated in the last handshake.
func (c *Connection) Capabilities() protocol.ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initResult.Capabilities
}

// ServerInfo returns the server identity from the last handshake.
func (c *Connection) ServerInfo() protocol.Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initResult.ServerInfo
}

// ProtocolVersion returns the protocol version the server answered with.
func (c *Connection) ProtocolVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initResult.ProtocolVersion
}

// Status returns a snapshot of the connection for reporting.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Name:            c.name,
		State:           c.state,
		ServerInfo:      c.initResult.ServerInfo,
		ProtocolVersion: c.initResult.ProtocolVersion,
		Capabilities:    c.initResult.Capabilities,
	}
	if c.state == StateReady {
		st.ReadySince = c.readySince
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// OnNotification registers h for notifications with the given method.
func (c *Connection) OnNotification(method string, h NotificationHandler) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.handlers[method] = append(c.handlers[method], h)
}

// OnStateChange registers a state listener.
func (c *Connection) OnStateChange(l StateListener) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Connect opens the transport and performs the handshake, retrying with a
// fixed delay. When every attempt fails the connection moves through Error
// to Closed and the last error is returned.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect %s: connection is %s", c.name, st)
	}
	c.mu.Unlock()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(c.ctx, stop)
	defer unlink()

	if err := c.retry(ctx, c.establish); err != nil {
		c.fail(err)
		return err
	}

	c.wg.Add(1)
	go c.supervise()
	return nil
}

// Call sends a request and waits for its response. It fails fast with
// ErrNotReady unless the connection is Ready. A JSON-RPC error from the
// server is returned as *protocol.ErrorObject.
func (c *Connection) Call(ctx context.Context, method string, params any) (map[string]any, error) {
	if st := c.State(); st != StateReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, c.name, st)
	}
	return c.call(ctx, method, params, c.cfg.RequestTimeout)
}

// ListTools fetches the server's tool list.
func (c *Connection) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	result, err := c.Call(ctx, protocol.MethodListTools, nil)
	if err != nil {
		return nil, err
	}
	var list protocol.ListToolsResult
	if err := protocol.Bind(result, &list); err != nil {
		return nil, fmt.Errorf("list_tools from %s: %w", c.name, err)
	}
	return list.Tools, nil
}

// CallTool invokes a tool by its server-local name.
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error) {
	result, err := c.Call(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var out protocol.CallToolResult
	if err := protocol.Bind(result, &out); err != nil {
		return nil, fmt.Errorf("call_tool %s on %s: %w", name, c.name, err)
	}
	return &out, nil
}

// Ping checks that the server answers. It is allowed while Degraded.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MethodPing, nil, c.cfg.RequestTimeout)
	return err
}

// Close terminates the connection and waits for its goroutines. Pending
// requests fail with ErrClosed.
func (c *Connection) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		from := c.state
		c.state = StateClosed
		tr := c.tr
		c.tr = nil
		c.alive = false
		pending := c.drainLocked(nil)
		c.mu.Unlock()

		if tr != nil {
			_ = tr.Close()
		}
		failPending(pending, protocol.CodeConnectionClosed, "connection closed")
		if from != StateClosed {
			c.emit(from, StateClosed)
		}
		logger.Debugw("connection closed", "server", c.name)
	})
}

// fail records err, passes through Error and closes.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	logger.Warnw("tool server connection failed", "server", c.name, "error", err)
	c.setState(StateError)
	c.shutdown()
}

// setState moves to the given state unless the connection is already
// closed, and reports whether it did.
func (c *Connection) setState(to State) bool {
	c.mu.Lock()
	from := c.state
	if from == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.state = to
	if to == StateReady {
		c.timeouts = 0
		c.readySince = time.Now()
		c.lastErr = nil
	}
	c.mu.Unlock()

	if from != to {
		c.emit(from, to)
	}
	return true
}

func (c *Connection) emit(from, to State) {
	logger.Debugw("connection state changed", "server", c.name, "from", from, "to", to)
	c.hooksMu.RLock()
	listeners := append([]StateListener(nil), c.listeners...)
	c.hooksMu.RUnlock()
	for _, l := range listeners {
		l(c.name, from, to)
	}
}

// retry runs op up to RetryAttempts times with RetryDelay between attempts.
func (c *Connection) retry(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil || c.State() == StateClosed {
			return struct{}{}, backoff.Permanent(err)
		}
		logger.Warnw("connection attempt failed",
			"server", c.name, "attempt", attempt, "max_attempts", c.cfg.RetryAttempts, "error", err)
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.RetryAttempts)), // #nosec G115 -- validated positive
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, d time.Duration) {
			logger.Debugw("retrying connection", "server", c.name, "delay", d)
		}),
	)
	return err
}

// establish opens a fresh transport and performs the handshake.
func (c *Connection) establish(ctx context.Context) error {
	if !c.setState(StateConnecting) {
		return ErrClosed
	}

	tr, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	gen, ok := c.attach(tr)
	if !ok {
		_ = tr.Close()
		return ErrClosed
	}

	if !c.setState(StateInitializing) {
		return ErrClosed
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	result, err := c.call(hctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.cfg.ClientInfo,
	}, 0)
	if err != nil {
		c.detach(gen)
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	var init protocol.InitializeResult
	if err := protocol.Bind(result, &init); err != nil {
		c.detach(gen)
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if init.ServerInfo.Name == "" || init.ProtocolVersion == "" {
		c.detach(gen)
		return fmt.Errorf("%w: initialize result lacks server identity or protocol version", ErrHandshake)
	}
	if init.ProtocolVersion != protocol.ProtocolVersion {
		logger.Warnw("tool server negotiated a different protocol version",
			"server", c.name, "requested", protocol.ProtocolVersion, "got", init.ProtocolVersion)
	}

	c.mu.Lock()
	c.initResult = init
	c.mu.Unlock()

	if err := c.notify(hctx, tr, protocol.MethodInitialized); err != nil {
		c.detach(gen)
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	if !c.setState(StateReady) {
		return ErrClosed
	}
	logger.Infow("connected to tool server",
		"server", c.name, "server_name", init.ServerInfo.Name, "server_version", init.ServerInfo.Version)
	return nil
}

// attach installs tr as the current transport and starts its reader.
func (c *Connection) attach(tr transport.Transport) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return 0, false
	}
	c.gen++
	c.tr = tr
	c.alive = true
	c.timeouts = 0
	gen := c.gen

	c.wg.Add(1)
	go c.readLoop(tr, gen)
	return gen, true
}

// detach closes the transport of generation gen and fails what it carried.
func (c *Connection) detach(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.tr == nil {
		c.mu.Unlock()
		return
	}
	tr := c.tr
	c.tr = nil
	c.alive = false
	pending := c.drainLocked(nil)
	c.mu.Unlock()

	_ = tr.Close()
	failPending(pending, protocol.CodeConnectionClosed, "transport closed")
}

func (c *Connection) transportAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive && c.tr != nil
}

func (c *Connection) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// call sends a request on the current transport regardless of state. A
// positive timeout bounds the wait; zero relies on ctx alone.
func (c *Connection) call(ctx context.Context, method string, params any, timeout time.Duration) (map[string]any, error) {
	c.mu.Lock()
	if c.tr == nil || !c.alive {
		st := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has no transport (%s)", ErrClosed, c.name, st)
	}
	tr, gen := c.tr, c.gen
	c.nextID++
	id := c.nextID
	pc := &pendingCall{method: method, issued: time.Now(), done: make(chan *protocol.Response, 1)}
	c.pending[id] = pc
	c.mu.Unlock()

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		c.removePending(id)
		return nil, err
	}
	data, err := protocol.Encode(req)
	if err != nil {
		c.removePending(id)
		return nil, err
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := tr.WriteLine(callCtx, data); err != nil {
		c.removePending(id)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case transport.IsRecoverable(err) || errors.Is(err, context.DeadlineExceeded):
			c.recordTimeout(gen)
			return nil, fmt.Errorf("%w: writing %s: %w", ErrTimeout, method, err)
		default:
			c.transportFailed(gen, err)
			return nil, fmt.Errorf("%w: writing %s: %w", ErrClosed, method, err)
		}
	}

	select {
	case resp := <-pc.done:
		if resp.Error != nil {
			switch resp.Error.Code {
			case protocol.CodeRequestTimeout:
				return nil, fmt.Errorf("%w: %w", ErrTimeout, resp.Error)
			case protocol.CodeConnectionClosed:
				return nil, fmt.Errorf("%w: %w", ErrClosed, resp.Error)
			}
			c.recordSuccess(gen)
			return nil, resp.Error
		}
		c.recordSuccess(gen)
		return resp.Result, nil
	case <-callCtx.Done():
		c.removePending(id)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.recordTimeout(gen)
		return nil, fmt.Errorf("%w: %s to %s after %s", ErrTimeout, method, c.name, timeout)
	}
}

func (c *Connection) notify(ctx context.Context, tr transport.Transport, method string) error {
	data, err := protocol.Encode(&protocol.Notification{Method: method})
	if err != nil {
		return err
	}
	return tr.WriteLine(ctx, data)
}

func (c *Connection) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// drainLocked removes and returns pending calls matching match, or all of
// them when match is nil. c.mu must be held.
func (c *Connection) drainLocked(match func(*pendingCall) bool) map[int64]*pendingCall {
	out := make(map[int64]*pendingCall)
	for id, pc := range c.pending {
		if match == nil || match(pc) {
			out[id] = pc
			delete(c.pending, id)
		}
	}
	return out
}

func failPending(pending map[int64]*pendingCall, code protocol.ErrorCode, reason string) {
	for id, pc := range pending {
		pc.done <- protocol.NewErrorResponse(protocol.IDPtr(id), code, reason, nil)
	}
}

func (c *Connection) recordSuccess(gen uint64) {
	c.mu.Lock()
	if gen == c.gen {
		c.timeouts = 0
	}
	c.mu.Unlock()
}

// recordTimeout counts a timeout and degrades the connection once the
// threshold is reached.
func (c *Connection) recordTimeout(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReady {
		c.mu.Unlock()
		return
	}
	c.timeouts++
	if c.timeouts < c.cfg.TimeoutThreshold {
		c.mu.Unlock()
		return
	}
	cutoff := time.Now()
	expired := c.drainLocked(func(pc *pendingCall) bool { return pc.issued.Before(cutoff) })
	c.lastErr = fmt.Errorf("%d consecutive request timeouts", c.timeouts)
	c.state = StateDegraded
	c.mu.Unlock()

	failPending(expired, protocol.CodeRequestTimeout, "request abandoned after repeated timeouts")
	logger.Warnw("tool server degraded after repeated timeouts", "server", c.name, "threshold", c.cfg.TimeoutThreshold)
	c.emit(StateReady, StateDegraded)
	c.signalRecover()
}

// transportFailed handles a read or write failure on transport gen.
func (c *Connection) transportFailed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	tr := c.tr
	c.tr = nil
	pending := c.drainLocked(nil)
	from := c.state
	degrade := from == StateReady
	if degrade {
		c.state = StateDegraded
		c.lastErr = cause
	}
	c.mu.Unlock()

	_ = tr.Close()
	failPending(pending, protocol.CodeConnectionClosed, "transport lost: "+cause.Error())
	if degrade {
		logger.Warnw("lost transport to tool server", "server", c.name, "error", cause)
		c.emit(from, StateDegraded)
		c.signalRecover()
	}
}

func (c *Connection) signalRecover() {
	select {
	case c.recoverCh <- struct{}{}:
	default:
	}
}

func (c *Connection) readLoop(tr transport.Transport, gen uint64) {
	defer c.wg.Done()
	for {
		line, err := tr.ReadLine()
		if err != nil {
			c.transportFailed(gen, err)
			return
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			logger.Warnw("discarding malformed message from tool server", "server", c.name, "error", err)
			continue
		}

		switch m := msg.(type) {
		case *protocol.Response:
			c.resolve(m)
		case *protocol.Notification:
			c.dispatch(m)
		case *protocol.Request:
			c.wg.Add(1)
			go c.answer(tr, m)
		}
	}
}

func (c *Connection) resolve(resp *protocol.Response) {
	if resp.ID == nil {
		if resp.Error != nil {
			logger.Warnw("tool server reported an error without request id", "server", c.name, "error", resp.Error)
		}
		return
	}

	c.mu.Lock()
	pc, ok := c.pending[*resp.ID]
	if ok {
		delete(c.pending, *resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		logger.Debugw("dropping response for unknown request id", "server", c.name, "id", *resp.ID)
		return
	}
	pc.done <- resp
}

func (c *Connection) dispatch(n *protocol.Notification) {
	c.hooksMu.RLock()
	handlers := append([]NotificationHandler(nil), c.handlers[n.Method]...)
	c.hooksMu.RUnlock()

	if len(handlers) == 0 {
		logger.Debugw("ignoring notification", "server", c.name, "method", n.Method)
		return
	}
	for _, h := range handlers {
		if c.ctx.Err() != nil {
			return
		}
		c.wg.Add(1)
		go func(h NotificationHandler) {
			defer c.wg.Done()
			h(c.ctx, n)
		}(h)
	}
}

// answer replies to requests the server sends to the client. Only ping is
// supported.
func (c *Connection) answer(tr transport.Transport, req *protocol.Request) {
	defer c.wg.Done()
	var resp *protocol.Response
	if req.Method == protocol.MethodPing {
		resp = &protocol.Response{ID: protocol.IDPtr(req.ID), Result: map[string]any{}}
	} else {
		resp = protocol.NewErrorResponse(protocol.IDPtr(req.ID), protocol.CodeMethodNotFound,
			"Method not found: "+req.Method, nil)
	}
	data, err := protocol.Encode(resp)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
	defer cancel()
	if err := tr.WriteLine(ctx, data); err != nil {
		logger.Debugw("failed to answer server request", "server", c.name, "method", req.Method, "error", err)
	}
}

// supervise drives recovery and keepalive until the connection closes.
func (c *Connection) supervise() {
	defer c.wg.Done()

	var tick <-chan time.Time
	if c.cfg.KeepaliveInterval > 0 {
		ticker := time.NewTicker(c.cfg.KeepaliveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.recoverCh:
			c.recover()
		case <-tick:
			c.keepalive()
		}
	}
}

// recover brings a Degraded connection back to Ready: a ping when the
// transport is still up, otherwise a fresh transport and handshake.
func (c *Connection) recover() {
	if c.State() != StateDegraded {
		return
	}
	logger.Infow("recovering tool server connection", "server", c.name)

	err := c.retry(c.ctx, func(ctx context.Context) error {
		if c.transportAlive() {
			gen := c.currentGen()
			if err := c.Ping(ctx); err == nil {
				if !c.setState(StateReady) {
					return ErrClosed
				}
				logger.Infow("tool server recovered", "server", c.name)
				return nil
			}
			c.detach(gen)
		}
		return c.establish(ctx)
	})
	if err != nil && c.State() != StateClosed {
		c.fail(err)
	}
}

func (c *Connection) keepalive() {
	if c.State() != StateReady {
		return
	}
	gen := c.currentGen()
	err := c.Ping(c.ctx)
	if err == nil || errors.Is(err, ErrTimeout) || errors.Is(err, ErrClosed) || c.ctx.Err() != nil {
		// Timeouts and transport loss are already accounted for by call.
		return
	}
	logger.Debugw("keepalive ping failed", "server", c.name, "error", err)
	c.recordTimeout(gen)
}
