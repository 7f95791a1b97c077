package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/config"
	"github.com/matheus3301/msgview/internal/lock"
	"github.com/matheus3301/msgview/internal/profile"
	"github.com/matheus3301/msgview/internal/store"
)

// fakeGateway serves /chats and a /ws feed that reports the first client frame.
type fakeGateway struct {
	srv    *httptest.Server
	frames chan string
	done   chan struct{}
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{frames: make(chan string, 4), done: make(chan struct{})}
	r := mux.NewRouter()
	r.HandleFunc("/chats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"rowid": 1, "guid": "iMessage;-;+15551234567", "identifier": "+15551234567"},
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		c, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, data, err := c.Read(ctx); err == nil {
			g.frames <- string(data)
		}
		<-g.done
	})
	g.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		close(g.done)
		g.srv.Close()
	})
	return g
}

func (g *fakeGateway) config(t *testing.T) *config.Config {
	t.Helper()
	host, port, err := net.SplitHostPort(g.srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Server.Host = host
	cfg.Server.Port, _ = strconv.Atoi(port)
	cfg.Feed.HeartbeatInterval = config.Duration(time.Hour)
	return cfg
}

func TestAppLifecycle(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())
	g := newFakeGateway(t)

	var b *bus.Bus
	app := fxtest.New(t,
		Module(Params{Profile: "test", Config: g.config(t)}),
		fx.Populate(&b),
	)
	events, unsub := b.Subscribe(bus.ChatlistUpdated, 16)
	defer unsub()

	app.RequireStart()

	select {
	case evt := <-events:
		rows := evt.Payload.([]chatlist.Row)
		if len(rows) != 1 || rows[0].ChatID != 1 {
			t.Errorf("rows = %+v, want chat 1", rows)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for chat list")
	}

	_, err := lock.Acquire(profile.Dir("test"))
	var held *lock.HeldError
	if !errors.As(err, &held) {
		t.Errorf("lock while running: err = %v, want HeldError", err)
	}

	app.RequireStop()

	lk, err := lock.Acquire(profile.Dir("test"))
	if err != nil {
		t.Fatalf("lock after stop: %v", err)
	}
	_ = lk.Release()
}

func TestAppResumesFromCheckpoint(t *testing.T) {
	t.Setenv(profile.HomeEnv, t.TempDir())
	if err := profile.EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(profile.StateDBPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	if err := db.SetInt64(store.KeyLastSeenRowID, 42); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	g := newFakeGateway(t)
	app := fxtest.New(t, Module(Params{Profile: "test", Config: g.config(t)}))
	app.RequireStart()
	defer app.RequireStop()

	select {
	case frame := <-g.frames:
		var got struct {
			Type  string `json:"type"`
			RowID int64  `json:"rowid"`
		}
		if err := json.Unmarshal([]byte(frame), &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "set_after_rowid" || got.RowID != 42 {
			t.Errorf("first frame = %s, want resume from 42", frame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for resume frame")
	}
}
