package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"roomsync/core"
	"roomsync/handlers/api/history"
	"roomsync/handlers/api/rooms"
	"roomsync/handlers/websocket"
	"roomsync/journal"
	applog "roomsync/middleware"
	"roomsync/names"
	"roomsync/stores"
	"roomsync/stores/memory"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

func setupRouter(store core.RoomStore, reader core.HistoryReader, hub *websocket.Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Logger)
	r.Use(middleware.Recoverer)

	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "::1":
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{rooms.StatusHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	r.Post("/make_room", rooms.HandleMakeRoom(store))
	r.Post("/list", rooms.HandleList(store))
	r.Post("/commit", rooms.HandleCommit(store))

	var counter rooms.SubscriberCounter
	if hub != nil {
		counter = hub
		r.Handle("/socket.io/", hub.Handler())
	}
	r.Get("/api/rooms", rooms.HandleListRooms(store, counter))

	// History is only available when the journal can read changes back.
	if reader != nil {
		r.Get("/api/rooms/{roomId}/history", history.HandleListHistory(reader))
		logrus.Info("History API routes registered")
	} else {
		logrus.Debug("History API not available for this journal")
	}

	return r
}

// newServer returns a server whose request contexts are cancelled when
// Shutdown begins, so waiting long polls return instead of holding it open.
func newServer(addr string, handler http.Handler) *http.Server {
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	srv.RegisterOnShutdown(cancelRequests)
	return srv
}

func loadNames(path string) (*names.Generator, error) {
	if path == "" {
		return names.Default(), nil
	}
	words, err := names.Load(path)
	if err != nil {
		return nil, err
	}
	return names.New(words)
}

func waitForShutdown(srv *http.Server, hub *websocket.Hub, recorder *journal.Recorder) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down...")
	if hub != nil {
		hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Server did not shut down cleanly")
	}

	if err := recorder.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close journal")
	}
	if dropped := recorder.Dropped(); dropped > 0 {
		logrus.WithField("dropped", dropped).Warn("Journal dropped changes")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(cfg.logLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	addr, err := resolveListen(cfg.listen)
	if err != nil {
		logrus.Fatal(err)
	}

	gen, err := loadNames(cfg.words)
	if err != nil {
		logrus.WithField("words", cfg.words).Fatal(err)
	}

	sink := stores.GetJournal()
	reader, _ := sink.(core.HistoryReader)
	recorder := journal.NewRecorder(sink, journal.DefaultQueueSize)

	// The hub needs the store to answer join-room and the store needs the
	// hub as a listener, so the hub is reached through a closure.
	var hub *websocket.Hub
	listeners := []core.ChangeListener{recorder}
	if cfg.socketIO {
		listeners = append(listeners, core.ChangeListenerFunc(func(ctx context.Context, change core.Change) error {
			return hub.RoomChanged(ctx, change)
		}))
	}

	store := memory.NewRoomStore(
		memory.WithNames(gen),
		memory.WithMaxNameAttempts(cfg.nameAttempts),
		memory.WithPollTimeout(cfg.pollTimeout),
		memory.WithListeners(listeners...),
	)
	if cfg.socketIO {
		hub = websocket.NewHub(store)
	}

	srv := newServer(addr, setupRouter(store, reader, hub))

	logrus.WithFields(logrus.Fields{
		"addr":        addr,
		"nameSpace":   gen.Space(),
		"pollTimeout": cfg.pollTimeout,
		"socketio":    cfg.socketIO,
	}).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, hub, recorder)
}
