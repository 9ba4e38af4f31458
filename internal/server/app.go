// Package server wires the gateway components together and runs them until
// the process is asked to stop.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/dmitrijs2005/progres-gateway/internal/server/config"
	"github.com/dmitrijs2005/progres-gateway/internal/server/llm"
	"github.com/dmitrijs2005/progres-gateway/internal/server/ownership"
	"github.com/dmitrijs2005/progres-gateway/internal/server/rest"
	"github.com/dmitrijs2005/progres-gateway/internal/server/revocation"
	"github.com/dmitrijs2005/progres-gateway/internal/server/services"
	"github.com/dmitrijs2005/progres-gateway/internal/server/upstream"
	"golang.org/x/sync/errgroup"
)

// limiterPruneInterval is how often idle rate limit buckets are dropped.
const limiterPruneInterval = time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *revocation.MemoryStore
	limiter *rest.RateLimiter
	server  *rest.Server
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	key, err := c.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	codec := auth.NewCodec(key)
	store := revocation.NewMemoryStore(logger, revocation.WithSweepInterval(c.RevocationSweepInterval))

	records := upstream.NewClient(c.UpstreamBaseURL, &http.Client{Timeout: c.UpstreamTimeout})
	chat := llm.NewClient(c.LLMBaseURL, c.LLMAPIKey, llm.WithModel(c.LLMModel), llm.WithTimeout(c.LLMTimeout))
	guard := ownership.NewGuard(records, logger)
	limiter := rest.NewRateLimiter(c.LoginRateLimit)

	router := rest.NewRouter(rest.Deps{
		Sessions:    services.NewSessionService(records, codec, store, c, logger),
		Students:    services.NewStudentService(records, guard, logger),
		Recommender: services.NewRecommendationService(records, chat, logger),
		Verifier:    codec,
		Revocations: store,
		Limiter:     limiter,
		Logger:      logger,
	}, rest.Options{
		AllowedOrigins:    c.AllowedOrigins,
		CORSMaxAge:        c.CORSMaxAge,
		CookieSecure:      c.CookieSecure,
		TrustProxyHeaders: c.TrustProxyHeaders,
	})

	return &App{
		config:  c,
		logger:  logger,
		store:   store,
		limiter: limiter,
		server:  rest.NewServer(c.ListenAddr, router, logger),
	}, nil
}

// Run blocks until SIGINT/SIGTERM or until a component fails, then shuts the
// HTTP server down gracefully and stops the revocation sweeper.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...")
	if app.config.LLMAPIKey == "" {
		app.logger.Warn(ctx, "no LLM API key configured, recommendations will fail")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx)
	})
	g.Go(func() error {
		return app.limiter.Run(ctx, limiterPruneInterval)
	})

	err := g.Wait()

	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(context.Background(), "closing revocation store", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
