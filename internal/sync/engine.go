// Package sync runs the client session: it owns the open conversation, the
// conversation list and the optimistic sends, and applies gateway results and
// live feed batches to them on a single goroutine.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/outbox"
	"github.com/matheus3301/msgview/internal/pagination"
	"github.com/matheus3301/msgview/internal/timeline"
)

// Gateway is the part of the gateway API the engine calls.
type Gateway interface {
	Chats(ctx context.Context, limit int) ([]model.Chat, error)
	Messages(ctx context.Context, q api.MessagesQuery) ([]model.Message, error)
	SendText(ctx context.Context, recipient, text, clientMsgID string) error
	Search(ctx context.Context, q api.SearchQuery) (*api.SearchPage, error)
}

// Contacts resolves sender handles.
type Contacts interface {
	Get(handle string) (*model.Contact, bool)
	Resolve(ctx context.Context, handle string) (*model.Contact, error)
}

// Options configures an Engine.
type Options struct {
	PageSize        int
	ChatLimit       int
	SeparatorGap    time.Duration
	ScrollThreshold int
	Notifications   bool
	SearchDebounce  time.Duration
	SearchPageSize  int
}

// Engine is the session controller. Every exported method is safe for
// concurrent use: it enqueues work for the engine goroutine, which is the
// only goroutine touching session state.
type Engine struct {
	gw         Gateway
	contacts   Contacts
	reconciler *Reconciler
	bus        *bus.Bus
	logger     *zap.Logger
	opts       Options
	now        func() time.Time

	ops    chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the engine goroutine.
	store     *timeline.Store
	outbox    *outbox.Tracker
	chats     *chatlist.Controller
	pager     *pagination.Pager
	active    int64
	seen      int64
	loading   bool
	loadErr   string
	focused   bool
	resolving map[string]bool
	search    searchState
}

// NewEngine creates an engine. contacts and reconciler may be nil.
func NewEngine(gw Gateway, contacts Contacts, reconciler *Reconciler, b *bus.Bus, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.ChatLimit <= 0 {
		opts.ChatLimit = 100
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = 50
	}
	e := &Engine{
		gw:         gw,
		contacts:   contacts,
		reconciler: reconciler,
		bus:        b,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		ops:        make(chan func(), 256),
		done:       make(chan struct{}),
		store:      timeline.NewStore(),
		chats:      chatlist.New(),
		pager:      pagination.New(opts.PageSize, opts.ScrollThreshold),
		focused:    true,
		resolving:  make(map[string]bool),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.outbox = outbox.NewTracker(gw, e.post, e.onOutboxChanged, logger.Named("outbox"))
	return e
}

// Start runs the engine loop until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	if e.reconciler != nil {
		e.seen = e.reconciler.LastSeen()
	}
	go func() {
		select {
		case <-ctx.Done():
			e.cancel()
		case <-e.ctx.Done():
		}
	}()
	go e.run()
}

// Stop ends the loop and cancels in-flight requests.
func (e *Engine) Stop() {
	e.cancel()
}

// Done is closed once the loop has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.ctx.Done():
			e.search.stopTimer()
			return
		}
	}
}

// post queues fn for the engine goroutine. It drops fn once the engine stopped.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.ctx.Done():
	}
}

// call runs fn on the engine goroutine and waits for it.
func (e *Engine) call(fn func()) bool {
	done := make(chan struct{})
	e.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.NewEvent(kind, payload))
}

func (e *Engine) publishError(op string, chatID int64, err error) {
	e.logger.Warn("operation failed", zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
	e.publish(bus.EngineError, ErrorEvent{Op: op, ChatID: chatID, Err: err})
}

// render publishes the timeline of the open conversation.
func (e *Engine) render(scrollToBottom, prepended bool) {
	chat, _ := e.chats.Get(e.active)
	view := timeline.Render(e.store, e.outbox.Placeholders(e.active), timeline.Options{
		SeparatorGap:   e.opts.SeparatorGap,
		Group:          chat.IsGroup(),
		ScrollToBottom: scrollToBottom,
	})
	view.ChatID = e.active
	view.Prepended = prepended
	view.Loading = e.loading
	view.HasMore = e.pager.HasMore()
	view.Error = e.loadErr
	e.publish(bus.TimelineRendered, view)
}

func (e *Engine) publishChats() {
	e.publish(bus.ChatlistUpdated, e.chats.Rows(e.now()))
}

func (e *Engine) onOutboxChanged() {
	e.publish(bus.OutboxChanged, e.outbox.Entries(e.active))
	e.render(false, false)
}

// resolveContacts looks up senders of the open conversation that arrived
// without a contact, re-rendering as they resolve.
func (e *Engine) resolveContacts() {
	if e.contacts == nil {
		return
	}
	chatID := e.active
	for _, h := range e.store.UnresolvedHandles() {
		if c, ok := e.contacts.Get(h); ok {
			if c != nil {
				e.store.SetContact(h, c)
			}
			continue
		}
		if e.resolving[h] {
			continue
		}
		e.resolving[h] = true
		handle := h
		go func() {
			c, err := e.contacts.Resolve(e.ctx, handle)
			e.post(func() {
				delete(e.resolving, handle)
				if err != nil {
					e.logger.Debug("contact resolve failed", zap.String("handle", handle), zap.Error(err))
					return
				}
				if c == nil || chatID != e.active {
					return
				}
				if e.store.SetContact(handle, c) > 0 {
					e.render(false, false)
				}
			})
		}()
	}
}
