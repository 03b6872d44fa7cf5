package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sessionstore/internal/config"
	"sessionstore/internal/database"
	"sessionstore/internal/logger"
	"sessionstore/internal/mongo"
	"sessionstore/internal/redis"
	"sessionstore/internal/routing"
	"sessionstore/pkg/middleware"
	"sessionstore/pkg/session"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load() // env + optional .env named by START

	logger := logger.Load(cfg.LogLevel)

	store, closeStore := openStore(cfg, logger)
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Panic(logger))
	api.Use(middleware.Session(store, middleware.SessionOptions{
		TTL:    cfg.TTL,
		Secure: cfg.CookieSecure,
		Logger: logger,
	}))

	routing.InitRoutes(api, store, logger)
	routing.ServeFallback(r, logger)
	routing.StartSweeper(ctx, store, cfg.SweepInterval, logger)

	if err := routing.StartServer(ctx, r, cfg.HTTPAddr, logger); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func openStore(cfg config.Config, logger *slog.Logger) (session.Store, func()) {
	corrupt, err := session.ParseCorruptPolicy(cfg.CorruptPolicy)
	if err != nil {
		log.Fatal(err)
	}

	switch cfg.Backend {
	case "mongo":
		db := mongo.LoadDB(cfg.MongoURI, cfg.MongoDBName)
		store := session.NewMongoStore(db, session.MongoOptions{
			Collection:    cfg.Table,
			CorruptPolicy: corrupt,
			Logger:        logger,
		})
		return store, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect", "error", err)
			}
		}

	case "redis":
		client, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatal("Cannot connect to Redis:", err)
		}
		store := session.NewRedisStore(client.Client, session.RedisOptions{
			CorruptPolicy: corrupt,
			Logger:        logger,
		})
		return store, func() { client.Close() }

	default:
		mode, err := session.ParseSaveMode(cfg.SaveMode)
		if err != nil {
			log.Fatal(err)
		}
		db := database.LoadDB(cfg.Driver, cfg.DSN, cfg.User, cfg.Password)
		store, err := session.New(session.Config{
			Table:         cfg.Table,
			Conn:          session.DB(db),
			Dialect:       session.Dialect(cfg.Driver),
			SaveMode:      mode,
			CorruptPolicy: corrupt,
			Logger:        logger,
		})
		if err != nil {
			log.Fatal(err)
		}
		if err := store.EnsureSchema(); err != nil {
			log.Fatal("Cannot create tables:", err)
		}
		logger.Info("session store ready", "driver", cfg.Driver, "table", cfg.Table)
		return store, func() { db.Close() }
	}
}
