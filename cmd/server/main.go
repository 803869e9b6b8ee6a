package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/config"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/directory"
	"github.com/haifischbank/backoffice/internal/events/kafka"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/processing"
	"github.com/haifischbank/backoffice/internal/server"
	"github.com/haifischbank/backoffice/internal/storage/memory"
	"github.com/haifischbank/backoffice/internal/storage/postgres"
	"github.com/haifischbank/backoffice/internal/timedriver"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var store interfaces.Store
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres unavailable", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		log.Info("using postgres store")
	} else {
		store = memory.NewStore()
		log.Info("using in-memory store")
	}

	books, err := ledger.New(ctx, store, log)
	if err != nil {
		log.Fatal("ledger init failed", zap.Error(err))
	}

	ids := idgen.New()
	dir := directory.New(ids)
	accountsSvc := accounts.NewService(store, books, ids, dir, cfg, log)
	credits := credit.NewEngine(store, books, ids, cfg, log)
	driver := timedriver.New(store, accountsSvc, credits, ids, log)

	if err := driver.EnsureClock(ctx, time.Now().UTC()); err != nil {
		log.Fatal("clock init failed", zap.Error(err))
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		log.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	processor := processing.New(store, accountsSvc, credits, driver, dir, publisher, cfg.KafkaTopic, log)
	srv := server.New(processor, accountsSvc, credits, books, dir, log)

	log.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Router()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
