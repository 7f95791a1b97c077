// Package feed maintains the single live websocket to the gateway and routes
// message batches to a handler.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/status"
)

// Batch is a non-empty group of messages delivered by the feed, ascending by RowID.
type Batch struct {
	Messages  []model.Message
	LastRowID int64
}

// Handler receives batches. HandleBatch runs on the connection's read
// goroutine and must not block for long.
type Handler interface {
	HandleBatch(b Batch)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(b Batch)

func (f HandlerFunc) HandleBatch(b Batch) { f(b) }

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func()) Timer

func afterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Options configures a Router.
type Options struct {
	URL    string
	Header http.Header
	// ReconnectDelay is the wait before reconnecting after a close.
	ReconnectDelay time.Duration
	// MaxReconnectDelay enables exponential backoff from ReconnectDelay up to
	// this cap. Zero keeps the delay constant.
	MaxReconnectDelay time.Duration
	HeartbeatInterval time.Duration
	// LastSeen is the resume point restored from a previous session.
	LastSeen int64
	// Scheduler defaults to time.AfterFunc.
	Scheduler Scheduler
}

// session is one websocket connection. A detached session no longer
// reports its closure to the router.
type session struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	detached bool
}

// retry is an outstanding reconnect timer.
type retry struct {
	timer Timer
}

// Router owns the live feed connection. At most one session and one
// reconnect timer exist at any time.
type Router struct {
	opts    Options
	handler Handler
	machine *status.Machine
	logger  *zap.Logger
	policy  backoff.BackOff

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	current  *session
	gen      uint64
	pending  *retry
	lastSeen int64
	started  bool
	stopped  bool
}

// NewRouter creates a router. machine receives every connection state change.
func NewRouter(opts Options, handler Handler, machine *status.Machine, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = afterFunc
	}
	return &Router{
		opts:     opts,
		handler:  handler,
		machine:  machine,
		logger:   logger,
		policy:   newPolicy(opts.ReconnectDelay, opts.MaxReconnectDelay),
		lastSeen: opts.LastSeen,
	}
}

func newPolicy(delay, maxDelay time.Duration) backoff.BackOff {
	if maxDelay <= delay {
		return backoff.NewConstantBackOff(delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Start opens the feed. Calling Start twice is a no-op.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.connectLocked()
}

// Stop closes the feed and cancels any pending reconnect. The router cannot
// be restarted.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.cancelRetryLocked()
	r.detachLocked("client stopping")
	r.transition(status.Stopped)
	if r.cancel != nil {
		r.cancel()
	}
}

// Reconnect replaces the current connection with a fresh one. The old
// connection is detached before it is closed so its closure cannot schedule
// another reconnect.
func (r *Router) Reconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	r.cancelRetryLocked()
	r.detachLocked("session reset")
	r.transition(status.Disconnected)
	r.policy.Reset()
	r.connectLocked()
}

// LastSeen returns the highest RowID delivered by the feed.
func (r *Router) LastSeen() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// SetLastSeen raises the resume point. Lower values are ignored.
func (r *Router) SetLastSeen(rowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen = max(r.lastSeen, rowID)
}

// State returns the current connection state.
func (r *Router) State() status.State {
	return r.machine.Current()
}

func (r *Router) connectLocked() {
	r.gen++
	gen := r.gen
	r.transition(status.Connecting)
	go r.dial(r.ctx, gen)
}

func (r *Router) dial(ctx context.Context, gen uint64) {
	ws, _, err := websocket.Dial(ctx, r.opts.URL, &websocket.DialOptions{HTTPHeader: r.opts.Header})

	r.mu.Lock()
	if r.stopped || gen != r.gen {
		r.mu.Unlock()
		if ws != nil {
			_ = ws.CloseNow()
		}
		return
	}
	if err != nil {
		r.logger.Warn("feed dial failed", zap.String("url", r.opts.URL), zap.Error(err))
		r.scheduleReconnectLocked()
		r.mu.Unlock()
		return
	}
	ws.SetReadLimit(8 << 20)
	connCtx, cancel := context.WithCancel(r.ctx)
	s := &session{ws: ws, cancel: cancel}
	r.current = s
	r.policy.Reset()
	r.transition(status.Open)
	lastSeen := r.lastSeen
	r.mu.Unlock()

	r.logger.Info("feed connected", zap.Int64("last_seen", lastSeen))
	if lastSeen > 0 {
		if err := wsjson.Write(connCtx, ws, resumeFrame{Type: frameSetAfterRowID, RowID: lastSeen}); err != nil {
			r.logger.Debug("resume frame failed", zap.Error(err))
		}
	}
	go r.heartbeat(connCtx, ws)
	r.readLoop(connCtx, s)
}

func (r *Router) heartbeat(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(r.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := wsjson.Write(ctx, ws, pingFrame{Type: framePing}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Router) readLoop(ctx context.Context, s *session) {
	for {
		_, data, err := s.ws.Read(ctx)
		if err != nil {
			r.onClosed(s, err)
			return
		}
		r.dispatch(data)
	}
}

func (r *Router) dispatch(data []byte) {
	var f inbound
	if err := json.Unmarshal(data, &f); err != nil {
		r.logger.Debug("malformed feed frame", zap.Error(err))
		return
	}
	switch f.Type {
	case frameMessages:
		var wire []api.MessageJSON
		if err := json.Unmarshal(f.Data, &wire); err != nil {
			r.logger.Debug("malformed messages frame", zap.Error(err))
			return
		}
		msgs := api.MessagesFromWire(wire)

		r.mu.Lock()
		seen := max(r.lastSeen, f.LastRowID)
		for _, m := range msgs {
			seen = max(seen, m.RowID)
		}
		r.lastSeen = seen
		r.mu.Unlock()

		if len(msgs) == 0 {
			return
		}
		r.handler.HandleBatch(Batch{Messages: msgs, LastRowID: seen})
	case framePing, framePong:
	case frameError:
		r.logger.Debug("feed error frame", zap.String("message", f.Message))
	default:
		r.logger.Debug("unknown feed frame", zap.String("type", f.Type))
	}
}

// onClosed handles the end of a session's read loop. Only the current,
// attached session may schedule a reconnect.
func (r *Router) onClosed(s *session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.detached || s != r.current {
		return
	}
	r.logger.Info("feed closed", zap.Error(err))
	s.cancel()
	_ = s.ws.CloseNow()
	r.current = nil
	r.scheduleReconnectLocked()
}

func (r *Router) scheduleReconnectLocked() {
	if r.stopped || r.pending != nil {
		return
	}
	delay := r.policy.NextBackOff()
	if delay == backoff.Stop {
		delay = r.opts.ReconnectDelay
	}
	r.transition(status.RetryScheduled)
	rt := &retry{}
	r.pending = rt
	rt.timer = r.opts.Scheduler(delay, func() { r.fire(rt) })
	r.logger.Debug("feed reconnect scheduled", zap.Duration("delay", delay))
}

func (r *Router) fire(rt *retry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != rt || r.stopped {
		return
	}
	r.pending = nil
	r.connectLocked()
}

func (r *Router) cancelRetryLocked() {
	if r.pending == nil {
		return
	}
	if r.pending.timer != nil {
		r.pending.timer.Stop()
	}
	r.pending = nil
}

func (r *Router) detachLocked(reason string) {
	s := r.current
	if s == nil {
		return
	}
	s.detached = true
	r.current = nil
	s.cancel()
	go func() { _ = s.ws.Close(websocket.StatusNormalClosure, reason) }()
}

func (r *Router) transition(to status.State) {
	if err := r.machine.Transition(to); err != nil {
		r.logger.Debug("feed state", zap.Error(err))
	}
}
