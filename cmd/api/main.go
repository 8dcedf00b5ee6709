package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"myapp.dev/internal/auth"
	"myapp.dev/internal/cache"
	"myapp.dev/internal/clients"
	"myapp.dev/internal/config"
	"myapp.dev/internal/httpapi"
	"myapp.dev/internal/idp"
	"myapp.dev/internal/mail"
	"myapp.dev/internal/obs"
	"myapp.dev/internal/store/pg"
)

func main() {
	if err := run(); err != nil {
		obs.L().Error("api exited", obs.Err(err))
		_ = obs.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.Init(obs.LogConfig{Env: cfg.App.Env, Level: cfg.Log.Level, Service: cfg.App.Name, Version: cfg.App.Version})
	defer func() { _ = obs.Sync() }()
	obs.InitMetrics()
	obs.SetBuildInfo(cfg.App.Version, cfg.App.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pg.Open(cfg.DB.ConnectionString, pg.PoolOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := waitFor(ctx, "postgres", cfg.DB.ConnectTimeout, store.Ping); err != nil {
		return err
	}

	kv, err := cache.New(cache.Config{
		Driver:   cfg.Redis.Driver,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return err
	}
	defer kv.Close()
	if err := waitFor(ctx, "cache", cfg.DB.ConnectTimeout, kv.Ping); err != nil {
		return err
	}

	provider, err := idp.New(idp.Config{
		BaseURL:    cfg.Supabase.URL,
		APIKey:     cfg.Supabase.APIKey(),
		ServiceKey: cfg.Supabase.SecretKey,
		Timeout:    cfg.Supabase.Timeout,
	})
	if err != nil {
		return err
	}
	mode, err := auth.ParseTokenMode(cfg.Auth.TokenMode)
	if err != nil {
		return err
	}
	codec, err := auth.NewTokenCodec(mode, cfg.Supabase.JWTSecret)
	if err != nil {
		return err
	}
	ledger := auth.NewLedger(store)
	resolver := auth.NewResolver(store, store, auth.WithActiveGrantsOnly(cfg.Auth.ActiveGrantsOnly))
	sessions := auth.NewSessionManager(
		auth.NewGateway(provider, ledger),
		ledger, codec, resolver, store,
		auth.WithRevocationCheck(cfg.Auth.RejectRevoked),
		auth.WithCookies(auth.NewCookieIssuer(auth.CookieConfig{
			AccessName:      cfg.Cookie.AccessName,
			RefreshName:     cfg.Cookie.RefreshName,
			Domain:          cfg.Cookie.Domain,
			Secure:          cfg.Cookie.Secure,
			RefreshSameSite: cfg.Cookie.SameSite(),
		})),
	)

	mailer := mail.NewSMTPSender(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.MailPort(),
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		SSL:      cfg.Mail.Secure,
	})

	probe := httpapi.ReadyProbe{DB: store.DB(), Cache: kv}
	api := httpapi.New(httpapi.Deps{
		Sessions: sessions,
		Clients:  clients.NewService(store),
		Cache:    kv,
		Mailer:   mailer,
		Ready:    probe,
	}, httpapi.Options{
		Version:          cfg.App.Version,
		MaxBodyBytes:     cfg.HTTP.MaxBodyBytes,
		RatePerSec:       cfg.HTTP.RateLimitRPS,
		RateBurst:        cfg.HTTP.RateLimitBurst,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		PasswordResetURL: cfg.Frontend.PasswordResetURL,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var gs *grpc.Server
	if cfg.HTTP.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTP.GRPCAddr)
		if err != nil {
			return err
		}
		gs = grpc.NewServer()
		httpapi.NewGRPCServer(probe).Register(gs)
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.HTTP.GRPCAddr))
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", obs.Err(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if gs != nil {
		gs.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

// waitFor retries ping with exponential backoff until it succeeds or maxWait elapses.
func waitFor(ctx context.Context, name string, maxWait time.Duration, ping func(context.Context) error) error {
	log := obs.Named("startup")
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, ping(pingCtx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxWait),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Warn("dependency not ready", zap.String("dependency", name), zap.Duration("retry_in", d), obs.Err(err))
		}),
	)
	if err != nil {
		return err
	}
	log.Info("dependency ready", zap.String("dependency", name))
	return nil
}
