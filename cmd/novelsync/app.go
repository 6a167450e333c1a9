package main

import (
	"fmt"
	"log/slog"

	"github.com/novelshare/novelsync/internal/config"
	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/netmon"
	"github.com/novelshare/novelsync/internal/queue"
	"github.com/novelshare/novelsync/internal/remote"
	"github.com/novelshare/novelsync/internal/search"
	"github.com/novelshare/novelsync/internal/service"
	"github.com/novelshare/novelsync/internal/session"
	"github.com/novelshare/novelsync/internal/store"
	"github.com/novelshare/novelsync/internal/sync"
)

// app wires the full client: local store, remote gateway, connectivity
// monitor, queue, sync engine, session manager, and the collection services.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	client  *remote.Client
	monitor *netmon.Monitor
	queue   *queue.Queue
	engine  *sync.Engine
	session *session.Manager
	library *service.Library
	history *service.History
	ratings *service.Ratings
	follows *service.Follows
	search  *search.Service
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("backend not configured: set remote.url and remote.anon_key (or NOVELSYNC_REMOTE_URL / NOVELSYNC_REMOTE_ANON_KEY)")
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting novelsync", "version", Version)

	st, err := store.Open(store.Options{
		Path:      cfg.Storage.Path,
		MaxBytes:  cfg.Storage.MaxBytes,
		Trimmable: store.TrimmableKeys,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client := remote.NewClient(cfg.Remote.URL, cfg.Remote.AnonKey, logger)
	monitor := netmon.New(client, netmon.Options{
		ProbeTimeout: cfg.Sync.ProbeTimeout,
		Debounce:     cfg.Sync.Debounce,
		Logger:       logger,
	})
	q := queue.New(st, logger)
	engine := sync.New(st, client, q, monitor, sync.Options{
		PullTimeout: cfg.Sync.PullTimeout,
		HistoryCap:  cfg.Sync.HistoryCap,
		Logger:      logger,
	})
	sess := session.New(st, client, logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		client:  client,
		monitor: monitor,
		queue:   q,
		engine:  engine,
		session: sess,
		library: service.NewLibrary(st, engine, sess, client, logger),
		history: service.NewHistory(st, engine, sess, client, logger),
		ratings: service.NewRatings(st, engine, sess, client, logger),
		follows: service.NewFollows(st, engine, sess, client, logger),
		search:  search.New(st, client, logger),
	}
	a.restoreSession()
	return a, nil
}

// sessionKey persists the identity session across CLI invocations.
const sessionKey = "novelshare_session"

func (a *app) restoreSession() {
	var sess domain.Session
	if a.store.GetJSON(sessionKey, &sess) && sess.AccessToken != "" {
		a.client.SetSession(&sess)
	}
	a.client.OnAuthChange(func(event domain.AuthEvent, s *domain.Session) {
		if s == nil {
			a.store.Remove(sessionKey)
			return
		}
		a.store.SetJSON(sessionKey, s)
	})
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
