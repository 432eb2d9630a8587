// Command userd serves the user CRUD API over a wide-column store with a
// cache-aside layer in front of it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/api"
	"github.com/unkn0wn-root/userd/internal/app"
	"github.com/unkn0wn-root/userd/internal/config"
	"github.com/unkn0wn-root/userd/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "userd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, flush, err := app.Logger(cfg)
	if err != nil {
		return err
	}
	defer flush()
	for _, w := range cfg.Warnings() {
		log.Warn(w, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	st, storePing, err := app.Store(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(startCtx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Info("store ready", userd.Fields{"backend": cfg.Store})

	var rdb *goredis.Client
	if app.NeedsRedis(cfg) {
		rdb = app.RedisClient(cfg)
		defer rdb.Close()
		if err := rdb.Ping(startCtx).Err(); err != nil {
			// the cache degrades to store-only, so an absent Redis is not fatal
			log.Warn("redis unreachable at startup", userd.Fields{"addr": cfg.RedisAddr, "err": err})
		}
	}

	var client goredis.UniversalClient
	if rdb != nil {
		// keep a nil *Client out of the interface
		client = rdb
	}
	cc, err := app.NewCache(ctx, cfg, log, client, cfg.CacheFailClosed)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cc.Close(context.Background())

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(service.New(st, cc.Users, log), api.Options{
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		Checks: map[string]api.Check{
			"store": storePing,
			"cache": cc.Ping,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", userd.Fields{"addr": cfg.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutdown signal received", nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", userd.Fields{"err": err})
		return err
	}
	log.Info("server shutdown complete", nil)
	return nil
}
