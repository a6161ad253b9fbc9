package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"couponflow/internal/api"
	"couponflow/internal/dispatch"
	"couponflow/internal/mcp"
	"couponflow/internal/notify"
	"couponflow/internal/schedule"
	"couponflow/internal/store"
)

func main() {
	var (
		addr   = flag.String("addr", ":8080", "HTTP bind address")
		dbPath = flag.String("db", "couponflow.db", "SQLite DB path")
		tick   = flag.Duration("tick", 30*time.Second, "scheduler check interval (max 1m)")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", *dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := store.NewSQLiteRepo(db)

	invoker := mcp.NewClient(os.Getenv("MCP_SERVER_URL"))
	pusher := notify.NewPusher(notify.Config{
		TelegramBotToken: os.Getenv("TG_BOT_TOKEN"),
		BarkKey:          os.Getenv("BARK_KEY"),
		FeishuWebhook:    os.Getenv("FEISHU_WEBHOOK"),
		ServerChanKey:    os.Getenv("SERVERCHAN_SENDKEY"),
	})

	engine := dispatch.NewEngine(repo, invoker, pusher)
	runtime := dispatch.NewRuntime(engine, 8)

	ctx, cancel := context.WithCancel(context.Background())
	go runtime.Run(ctx)

	sched, err := schedule.New(schedule.DefaultTable(), runtime.Submit, *tick)
	if err != nil {
		log.Fatal().Err(err).Msg("build scheduler")
	}
	go sched.Start(ctx)

	srv := &http.Server{Addr: *addr, Handler: api.NewServer(repo, runtime)}
	go func() {
		log.Info().Str("addr", *addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	sched.Stop()
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
