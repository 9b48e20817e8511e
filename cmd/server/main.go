package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"authPortal/internal/config"
	"authPortal/internal/db"
	"authPortal/internal/download"
	grpcserver "authPortal/internal/grpc"
	"authPortal/internal/hasher"
	"authPortal/internal/logging"
	"authPortal/internal/session"
	"authPortal/internal/web"
	"authPortal/repository"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		config.Usage(flag.CommandLine.Output())
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logger.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "err", err)
		}
	}()

	users := repository.NewUserRepository(d)

	store, closeStore, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	key, err := session.SigningKey(cfg.Session.Secret, cfg.Session.KeyFile)
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}
	sessions, err := session.NewManager(users, store, key, cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	files, err := newDownloadSource(ctx, cfg.Download)
	if err != nil {
		return fmt.Errorf("download source: %w", err)
	}
	if c, ok := files.(io.Closer); ok {
		defer c.Close()
	}

	srv, err := web.NewServer(web.Deps{
		Users:          users,
		Hasher:         hasher.New(cfg.Hash.Iterations, cfg.Hash.SaltLength),
		Sessions:       sessions,
		Files:          files,
		DB:             d,
		Log:            logger,
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	grpcShutdown, err := grpcserver.StartGRPC(cfg, sessions, logger)
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTP.Address)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http serve", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := grpcShutdown(shutdownCtx); err != nil {
		logger.Error("grpc shutdown", "err", err)
	}
	return nil
}

func newSessionStore(ctx context.Context, c config.SessionConfig) (session.Store, func(), error) {
	switch c.Store {
	case "memory":
		return session.NewMemoryStore(c.MaxEntries, c.TTL), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPass,
			DB:       c.RedisDB,
		})
		rs := session.NewRedisStore(client, c.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		return rs, func() { _ = client.Close() }, nil
	default:
		d, err := db.OpenSessions(c.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open session db: %w", err)
		}
		return session.NewSQLiteStore(d, c.TTL), func() { _ = d.Close() }, nil
	}
}

func newDownloadSource(ctx context.Context, c config.DownloadConfig) (download.Source, error) {
	if c.Backend == "s3" {
		return download.NewS3Source(ctx, download.S3Options{
			Bucket:    c.S3Bucket,
			Key:       c.File,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
	}
	return download.NewLocalSource(c.Dir, c.File)
}
