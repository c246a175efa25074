package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/tokenbroker/internal/access"
	"github.com/dropDatabas3/tokenbroker/internal/config"
	httpx "github.com/dropDatabas3/tokenbroker/internal/http"
	"github.com/dropDatabas3/tokenbroker/internal/http/controllers"
	"github.com/dropDatabas3/tokenbroker/internal/metrics"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/observability/logger"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "tokenbroker",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := tokenstore.Open(ctx, tokenstore.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		RedisAddr:   cfg.Store.Redis.Addr,
		RedisDB:     cfg.Store.Redis.DB,
		RedisPrefix: cfg.Store.Redis.Prefix,
		PostgresDSN: cfg.Store.Postgres.DSN,
	})
	if err != nil {
		logger.L().Fatal("open token store", logger.Driver(cfg.Store.Driver), logger.Err(err))
	}

	correlator := session.New(
		config.Duration(cfg.Session.StateTTL, session.DefaultStateTTL),
		config.Duration(cfg.Session.CredentialTTL, session.DefaultCredentialTTL),
	)
	engine := oauth.NewClient(config.Duration(cfg.OAuth.UpstreamTimeout, oauth.DefaultTimeout))
	coordinator := access.New(store, correlator, engine)

	ctrls := controllers.New(controllers.Deps{
		Registry:    provider.Default(),
		Sessions:    correlator,
		Store:       store,
		Engine:      engine,
		Coordinator: coordinator,
		RedirectURI: cfg.OAuth.RedirectURI,
	})

	handler := httpx.NewRouter(ctrls, metrics.Register(nil), cfg.Server.CORSAllowedOrigins)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpx.Serve(gctx, cfg.Server.Addr, handler)
	})

	logger.L().Info("tokenbroker listening",
		logger.String("addr", cfg.Server.Addr),
		logger.Driver(cfg.Store.Driver),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().Fatal("server exited", logger.Err(err))
	}
}
