package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/api"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/cache"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/channel"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/config"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/quota"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/repo"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/scheduler"
	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration failed", "error", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg.Database.PostgresURL)
	if err != nil {
		slog.Error("connect to postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	campaigns := repo.NewPostgresCampaignStore(db)
	enrollments := repo.NewPostgresEnrollmentStore(db)
	usage := repo.NewPostgresQuotaStore(db)
	accounts := repo.NewPostgresAccountStore(db)

	var (
		results   sequence.ResultSink
		summaries sequence.SummarySink
		reader    api.ResultReader
	)
	if cfg.Redis.Enabled() {
		rc, err := openResultCache(cfg.Redis)
		if err != nil {
			slog.Error("connect to redis failed", "addr", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		results, summaries, reader = rc, rc, rc
		slog.Info("result cache enabled", "addr", cfg.Redis.Address, "ttl", cfg.Redis.TTL.String())
	} else {
		slog.Info("result cache disabled, last-run endpoints will return 404")
	}

	senders := channel.Registry{
		model.ChannelEmail: channel.NewEmailSender(accounts),
		model.ChannelSMS: channel.NewSMSSender(channel.SMSConfig{
			APIURL: cfg.SMS.APIURL,
			APIKey: cfg.SMS.APIKey,
			From:   cfg.SMS.From,
		}),
		model.ChannelWhatsApp: channel.NewWhatsAppSender(channel.WhatsAppConfig{
			APIURL: cfg.WhatsApp.APIURL,
			Token:  cfg.WhatsApp.Token,
		}),
	}

	ledger := quota.NewLedger(usage, accounts)
	stepper := sequence.NewStepper(enrollments, accounts, ledger, senders)
	runner := sequence.NewRunner(campaigns, enrollments, stepper, results)
	sweeper := sequence.NewSweeper(accounts, campaigns, runner, summaries,
		cfg.Sweep.BatchLimit, cfg.Sweep.Budget, cfg.Sweep.Workers)

	sched, err := scheduler.New(cfg.Sweep.Interval, func(ctx context.Context) {
		sweeper.Run(ctx)
	})
	if err != nil {
		slog.Error("create scheduler failed", "error", err)
		os.Exit(1)
	}
	sched.Start()

	handler := api.NewHandler(sched, runner, ledger, reader)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}

func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openResultCache(cfg config.RedisConfig) (*cache.RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return cache.NewRedisCache(rdb, cfg.TTL), nil
}
