package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"deskbot/app/client/kv"
	"deskbot/app/client/llm"
	"deskbot/app/client/slack"
	"deskbot/app/config"
	"deskbot/app/service/agent"
	"deskbot/app/service/dispatch"
	"deskbot/app/service/engine"
	"deskbot/app/service/gateway"
	"deskbot/app/service/history"
	"deskbot/app/service/ingest"
	"deskbot/app/service/retrieval"
	"deskbot/app/service/router"
	"deskbot/app/util/health"
	"deskbot/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, slack.NewClient)
	do.Provide(di, kv.NewRedisStore)
	do.Provide(di, func(di *do.Injector) (kv.Store, error) {
		return do.MustInvoke[*kv.RedisStore](di), nil
	})
	do.Provide(di, llm.NewClient)
	do.Provide(di, func(di *do.Injector) (llm.Completer, error) {
		return do.MustInvoke[*llm.Client](di), nil
	})
	do.Provide(di, retrieval.New)
	do.Provide(di, func(di *do.Injector) (ingest.Indexer, error) {
		return do.MustInvoke[*retrieval.Service](di), nil
	})
	do.Provide(di, func(di *do.Injector) (agent.Retriever, error) {
		return do.MustInvoke[*retrieval.Service](di), nil
	})
	do.Provide(di, history.New)
	do.Provide(di, ingest.New)
	do.Provide(di, router.New)
	do.Provide(di, agent.New)
	do.Provide(di, dispatch.New)
	do.Provide(di, gateway.New)
	do.Provide(di, engine.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	health.Start(appCtx, cfg.Health.Listen)

	go do.MustInvoke[*engine.Service](di).Run(appCtx)

	<-appCtx.Done()
}
