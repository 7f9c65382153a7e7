package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"colabatr/account"
	"colabatr/config"
	"colabatr/credential"
	"colabatr/db"
	"colabatr/events"
	"colabatr/httpapi"
	"colabatr/identity"
	"colabatr/logging"
	"colabatr/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	redisClient, err := credential.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var publisher interface {
		identity.Publisher
		Close() error
	} = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return err
		}
		publisher = amqpPublisher
	} else {
		log.Info("AMQP_URL not set; identity events are discarded")
	}
	defer publisher.Close()

	accounts := account.NewRepository(pool)
	links := identity.NewLinkRepository(pool)
	resolver := identity.NewResolver(accounts, links, log.Named("identity")).
		WithPublisher(publisher).
		WithMaxAttempts(cfg.ResolveMaxAttempts)

	var otpSender credential.Sender = credential.NoSender{}
	if !cfg.IsProduction() {
		otpSender = credential.LogSender{Log: log.Named("otp"), Reveal: true}
	} else {
		log.Warn("no SMS gateway configured; phone sign-in is disabled")
	}

	server := httpapi.NewServer(httpapi.Deps{
		Resolver: resolver,
		Accounts: account.NewService(accounts, log.Named("account")),
		Password: credential.NewPassword(accounts, cfg.BcryptCost),
		Google:   credential.NewGoogle(cfg.GoogleClientID),
		OTP: credential.NewOTP(
			credential.NewRedisCodeStore(redisClient),
			otpSender,
			cfg.OTPTTL,
			cfg.OTPLength,
		),
		Sessions: session.NewIssuer(cfg.JWTSecret, cfg.SessionTTL),
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool, 2*time.Second)
		},
	}, httpapi.Options{
		FrontendURL:  cfg.FrontendURL,
		CookieSecure: cfg.CookieSecure,
	}, log.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- server.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
