package main

import (
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/mdmrafi/vartalap/internal/auth"
	"github.com/mdmrafi/vartalap/internal/chat"
	"github.com/mdmrafi/vartalap/internal/config"
	"github.com/mdmrafi/vartalap/internal/delivery"
	"github.com/mdmrafi/vartalap/internal/messages"
	"github.com/mdmrafi/vartalap/internal/presence"
	"github.com/mdmrafi/vartalap/internal/storage"
	"github.com/mdmrafi/vartalap/internal/storage/postgres"
	"github.com/mdmrafi/vartalap/internal/storage/sqlite"
	"github.com/mdmrafi/vartalap/internal/users"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "err", err)
	}
	cfg := config.MustLoad()

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = postgres.Open(cfg.DBDsn)
	default:
		db, err = sqlite.Open(cfg.DBDsn)
	}
	if err != nil {
		log.Fatalf("error opening database: %v", err)
	}
	defer db.Close()

	store := storage.New(db)
	if *migrate {
		if err := store.Migrate(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		slog.Info("migration completed")
		return
	}

	svc := delivery.New(store)
	registry := presence.NewRegistry()
	hub := chat.NewHub(store, svc, registry, time.Duration(cfg.TypingIdleSec)*time.Second)
	go hub.Run()

	r := gin.Default()
	api := r.Group("/api")
	users.RegisterPublic(api, store, cfg)
	chat.RegisterWS(api, hub, cfg.JWTSecret)

	authed := api.Group("")
	authed.Use(auth.JWTMiddleware(cfg.JWTSecret))
	users.Register(authed, store, hub)
	messages.Register(authed, hub, svc, cfg.PageSize)

	slog.Info("vartalap listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
