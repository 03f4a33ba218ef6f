package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gradarchive.org/internal/auth"
	"gradarchive.org/internal/config"
	"gradarchive.org/internal/httpapi"
	"gradarchive.org/internal/mail"
	"gradarchive.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	log := obs.With("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	obs.SetLevel(cfg.Log.Level)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	store := auth.NewPGStore(db)
	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		ResetSecret:   cfg.Tokens.ResetSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		ResetTTL:      cfg.Tokens.ResetTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build token codec")
	}
	hasher := auth.NewHasher(cfg.Tokens.BcryptCost)

	var mailer mail.Mailer
	if cfg.SMTP.Addr != "" {
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("build smtp mailer")
		}
	} else {
		log.Warn().Msg("SMTP not configured, reset emails are logged instead")
		mailer = mail.NewLogMailer(obs.With("mail"))
	}

	svc, err := auth.NewService(store, codec, hasher,
		auth.WithMailer(mailer),
		auth.WithProfileImages(store.ProfileImages()),
		auth.WithResetBaseURL(cfg.HTTP.ResetLinkBaseURL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build auth service")
	}
	authz, err := auth.NewAuthority(store)
	if err != nil {
		log.Fatal().Err(err).Msg("build authority")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureBuiltins(startCtx); err != nil {
		cancelStart()
		log.Fatal().Err(err).Msg("ensure permission catalog")
	}
	cancelStart()

	api := httpapi.New(svc, authz, codec, httpapi.ReadyProbe{DB: db}, httpapi.Options{
		Version:         version,
		RateLimitPerSec: cfg.HTTP.RateLimitPerSec,
		RateLimitBurst:  cfg.HTTP.RateLimitBurst,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		SecureCookies:   true,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Expired refresh sessions are dead weight; sweep them hourly.
	purgeCtx, cancelPurge := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if n, err := svc.PurgeExpiredRefreshTokens(purgeCtx); err != nil {
					log.Error().Err(err).Msg("purge expired refresh tokens")
				} else if n > 0 {
					log.Info().Int64("removed", n).Msg("purged expired refresh tokens")
				}
			}
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting gradarchive-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	cancelPurge()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Info().Msg("stopped")
}
