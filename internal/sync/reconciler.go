package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/store"
)

// Checkpoints is the persistent key/value state the reconciler writes to.
type Checkpoints interface {
	GetInt64(key string) (int64, error)
	SetInt64(key string, n int64) error
}

// Reconciler persists the feed resume point so a restarted client does not
// receive messages it has already seen. Writes are coalesced and flushed
// periodically.
type Reconciler struct {
	db       Checkpoints
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	lastSeen int64
	flushed  int64
	lastChat int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciler creates a reconciler backed by db.
func NewReconciler(db Checkpoints, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger, interval: 2 * time.Second}
}

// Restore loads the persisted resume point.
func (r *Reconciler) Restore() (int64, error) {
	n, err := r.db.GetInt64(store.KeyLastSeenRowID)
	if err != nil {
		return 0, fmt.Errorf("restore last seen: %w", err)
	}
	r.mu.Lock()
	r.lastSeen = max(r.lastSeen, n)
	r.flushed = r.lastSeen
	r.mu.Unlock()
	return n, nil
}

// LastChat returns the conversation that was open in the previous session.
func (r *Reconciler) LastChat() int64 {
	n, err := r.db.GetInt64(store.KeyLastChatID)
	if err != nil {
		r.logger.Debug("read last chat", zap.Error(err))
		return 0
	}
	return n
}

// Observe records a delivered RowID. Lower values are ignored.
func (r *Reconciler) Observe(rowID int64) {
	r.mu.Lock()
	r.lastSeen = max(r.lastSeen, rowID)
	r.mu.Unlock()
}

// ObserveChat records the open conversation.
func (r *Reconciler) ObserveChat(chatID int64) {
	r.mu.Lock()
	r.lastChat = chatID
	r.mu.Unlock()
}

// LastSeen returns the highest RowID observed.
func (r *Reconciler) LastSeen() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Flush writes pending checkpoints.
func (r *Reconciler) Flush() error {
	r.mu.Lock()
	seen, flushed, chat := r.lastSeen, r.flushed, r.lastChat
	r.mu.Unlock()

	if seen > flushed {
		if err := r.db.SetInt64(store.KeyLastSeenRowID, seen); err != nil {
			return fmt.Errorf("checkpoint last seen: %w", err)
		}
		r.mu.Lock()
		r.flushed = max(r.flushed, seen)
		r.mu.Unlock()
	}
	if chat != 0 {
		if err := r.db.SetInt64(store.KeyLastChatID, chat); err != nil {
			return fmt.Errorf("checkpoint last chat: %w", err)
		}
		r.mu.Lock()
		if r.lastChat == chat {
			r.lastChat = 0
		}
		r.mu.Unlock()
	}
	return nil
}

// Start flushes checkpoints in the background until Stop.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Flush(); err != nil {
					r.logger.Warn("checkpoint flush failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the background loop and performs a final flush.
func (r *Reconciler) Stop() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return r.Flush()
}
