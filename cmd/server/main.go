package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartplate/smartplate-api/internal/config"
	"github.com/smartplate/smartplate-api/internal/database"
	"github.com/smartplate/smartplate-api/internal/handler"
	"github.com/smartplate/smartplate-api/internal/queue"
	"github.com/smartplate/smartplate-api/internal/repository"
	"github.com/smartplate/smartplate-api/internal/router"
	"github.com/smartplate/smartplate-api/internal/service"
	"github.com/smartplate/smartplate-api/internal/utils"
	"github.com/smartplate/smartplate-api/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Refresh-token rotation store
	var refresh service.RefreshStore = repository.NewTokenRepo(db)
	if cfg.TokenStore == "redis" {
		rdb, err := config.NewRedisClient(ctx)
		if err != nil {
			log.Error("redis", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		refresh = repository.NewRedisTokenStore(rdb)
	}

	// Domain events
	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL, log)
		go func() {
			if err := queue.NewAuditConsumer(cfg.AMQPURL, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	tokens, err := utils.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		log.Error("token manager", "err", err)
		os.Exit(1)
	}
	hasher := utils.NewHasher(cfg.BcryptCost)

	accounts := repository.NewAccountRepo(db)
	questionnaires := repository.NewQuestionnaireRepo(db)
	messages := repository.NewMessageRepo(db)

	authSvc := service.NewAuthService(accounts, refresh, tokens, hasher, events, cfg.Location, log)
	accountSvc := service.NewAccountService(accounts, questionnaires, hasher, events, cfg.Location, log)
	planSvc := service.NewPlanService(accounts, cfg.Location)
	questionnaireSvc := service.NewQuestionnaireService(questionnaires)
	messageSvc := service.NewMessageService(accounts, messages, events, log)

	e := router.New(cfg, log, tokens, router.Handlers{
		Health:   &handler.HealthHandler{DB: db},
		Auth:     handler.NewAuthHandler(cfg, authSvc, log),
		User:     handler.NewUserHandler(planSvc, questionnaireSvc, log),
		Admin:    handler.NewAdminHandler(accountSvc, log),
		Messages: handler.NewMessageHandler(messageSvc, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "tz", cfg.Timezone, "token_store", cfg.TokenStore)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	log.Info("stopped")
}
