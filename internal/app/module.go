// Package app wires the client components into an fx application.
package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/config"
	"github.com/matheus3301/msgview/internal/contacts"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/lock"
	"github.com/matheus3301/msgview/internal/logging"
	"github.com/matheus3301/msgview/internal/profile"
	"github.com/matheus3301/msgview/internal/status"
	"github.com/matheus3301/msgview/internal/store"
	intsync "github.com/matheus3301/msgview/internal/sync"
)

// Params holds the resolved profile and configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// Console optionally receives warnings and errors. The TUI leaves it nil.
	Console io.Writer
}

// Module returns the fx module for a client session, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideContacts,
			provideReconciler,
			provideEngine,
			provideRouter,
		),
		fx.Invoke(registerLifecycle),
	)
}

// New creates the application. Extra options are typically fx.Populate
// targets for the caller's front end.
func New(p Params, opts ...fx.Option) *fx.App {
	all := append([]fx.Option{
		Module(p),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	}, opts...)
	return fx.New(all...)
}

func provideConfig(p Params) *config.Config {
	if p.Config == nil {
		return config.Default()
	}
	return p.Config
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    profile.LogPath(p.Profile),
		Profile: p.Profile,
		Level:   cfg.Log.Level,
		Console: p.Console,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", p.Profile))
	return l, nil
}

// provideStore depends on the lock so the state database is only opened by
// the profile owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	path := profile.StateDBPath(p.Profile)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.String("path", db.Path()), zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) (*api.Client, error) {
	return api.NewClient(cfg.Server, logger.Named("api"))
}

func provideContacts(cfg *config.Config, client *api.Client, db *store.DB, logger *zap.Logger) *contacts.Cache {
	return contacts.NewCache(client, contacts.Options{
		TTL:              cfg.Contacts.TTL.D(),
		NegativeTTL:      cfg.Contacts.NegativeTTL.D(),
		Capacity:         cfg.Contacts.Capacity,
		LookupsPerSecond: cfg.Contacts.LookupsPerSecond,
		Persister:        db,
	}, logger.Named("contacts"))
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger.Named("reconciler"))
}

func provideEngine(cfg *config.Config, client *api.Client, cache *contacts.Cache, rec *intsync.Reconciler, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(client, cache, rec, b, intsync.Options{
		PageSize:        cfg.View.PageSize,
		ChatLimit:       cfg.View.ChatLimit,
		SeparatorGap:    cfg.View.SeparatorGap.D(),
		ScrollThreshold: cfg.View.ScrollThreshold,
		Notifications:   cfg.Notifications.Enabled,
		SearchDebounce:  cfg.Search.Debounce.D(),
		SearchPageSize:  cfg.Search.PageSize,
	}, logger.Named("engine"))
}

func provideRouter(cfg *config.Config, client *api.Client, engine *intsync.Engine, m *status.Machine, logger *zap.Logger) *feed.Router {
	return feed.NewRouter(feed.Options{
		URL:               client.FeedURL(),
		Header:            client.Header(),
		ReconnectDelay:    cfg.Feed.ReconnectDelay.D(),
		MaxReconnectDelay: cfg.Feed.MaxReconnectDelay.D(),
		HeartbeatInterval: cfg.Feed.HeartbeatInterval.D(),
	}, engine, m, logger.Named("feed"))
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, cache *contacts.Cache, rec *intsync.Reconciler, engine *intsync.Engine, router *feed.Router, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if n, err := cache.Warm(); err != nil {
				logger.Warn("contact cache warm failed", zap.Error(err))
			} else {
				logger.Info("contact cache warmed", zap.Int("entries", n))
			}

			lastSeen, err := rec.Restore()
			if err != nil {
				logger.Warn("resume point unavailable", zap.Error(err))
			}
			router.SetLastSeen(lastSeen)
			lastChat := rec.LastChat()

			rec.Start(context.Background())
			engine.Start(context.Background())
			router.Start(context.Background())

			engine.RefreshChats()
			if lastChat != 0 {
				engine.OpenChat(lastChat)
			}
			logger.Info("client started", zap.Int64("last_seen", lastSeen), zap.Int64("last_chat", lastChat))
			return nil
		},
		OnStop: func(_ context.Context) error {
			router.Stop()
			engine.Stop()
			if err := rec.Stop(); err != nil {
				logger.Warn("final checkpoint failed", zap.Error(err))
			}
			if n, err := db.PruneContacts(time.Now()); err != nil {
				logger.Warn("prune contacts failed", zap.Error(err))
			} else if n > 0 {
				logger.Debug("pruned expired contacts", zap.Int64("rows", n))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing state db", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
