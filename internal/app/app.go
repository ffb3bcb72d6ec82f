package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ragchat/internal/config"
	"ragchat/internal/httpapi"
	"ragchat/internal/logger"
	"ragchat/internal/storage"
)

// App holds every wired component of a running instance.
type App struct {
	Log      *logger.Logger
	Cfg      *config.AppConfig
	DB       *gorm.DB
	Clients  Clients
	Repos    Repos
	Services Services
	Router   *gin.Engine

	cancel  context.CancelFunc
	closers []func() error
}

// New connects backends, wires repositories and services, and prepares the
// vector store. The caller owns Close.
func New(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Log: log, Cfg: cfg}

	db, err := storage.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	clients, err := wireClients(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Clients = clients
	a.closers = append(a.closers, clients.closers...)

	a.Repos = wireRepos(db, log)
	a.Services = wireServices(cfg, log, clients, a.Repos)

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.Services.RAG.Init(initCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	a.Router = httpapi.NewRouter(httpapi.RouterConfig{
		Accounts:    a.Services.Auth,
		Chat:        a.Services.RAG,
		CORSOrigins: cfg.Server.CORSOrigins,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Log:         log,
	})
	return a, nil
}

// Start launches background maintenance. It is a no-op when already started.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if s := a.Clients.Sweeper; s != nil {
		go sweepLoop(ctx, s, time.Minute, a.Log)
	}
}

// Close stops background work and releases backend connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.Log != nil {
			a.Log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	if a.Log != nil {
		a.Log.Sync()
	}
}

type sweeper interface {
	Sweep() int
}

func sweepLoop(ctx context.Context, s sweeper, every time.Duration, log *logger.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				log.Debug("expired cache entries dropped", "count", n)
			}
		}
	}
}
