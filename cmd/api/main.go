package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/go-shop-api/internal/api"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/catalog"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/customers"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/notify"
	"github.com/safar/go-shop-api/internal/orders"
	"github.com/safar/go-shop-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	logging.Info().Msg("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Str("mode", cfg.Auth.Mode).Msg("build token verifier")
	}

	repo := store.New(db)
	dispatcher := notify.NewDispatcher(smsSender(cfg.Notify), emailSender(cfg.Notify), notify.Config{
		AdminEmail:  cfg.Notify.AdminEmail,
		CountryCode: cfg.Notify.CountryCode,
		Timeout:     cfg.Notify.Timeout,
	})

	srv := api.NewServer(
		catalog.NewService(repo),
		customers.NewDirectory(repo),
		orders.NewService(repo, dispatcher),
		verifier,
		api.Options{
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
			RateLimitRequests:  cfg.Server.RateLimitRequests,
			RateLimitWindow:    cfg.Server.RateLimitWindow,
			ProtectResources:   cfg.Auth.ProtectResources,
			Health:             db.PingContext,
		},
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("auth_mode", cfg.Auth.Mode).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown")
	}
}

// smsSender returns nil when the gateway is not configured so the
// dispatcher skips the channel.
func smsSender(cfg config.NotifyConfig) notify.SMSSender {
	sender := notify.NewAfricasTalkingSender(cfg.SMSUsername, cfg.SMSAPIKey, cfg.SMSSenderID, cfg.SMSEndpoint)
	if sender == nil {
		logging.Warn().Msg("sms gateway not configured, order texts disabled")
		return nil
	}
	return notify.WithSMSBreaker(sender, notify.DefaultBreakerConfig())
}

func emailSender(cfg config.NotifyConfig) notify.EmailSender {
	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	if sender == nil {
		logging.Warn().Msg("smtp not configured, order emails disabled")
		return nil
	}
	return notify.WithEmailBreaker(sender, notify.DefaultBreakerConfig())
}
