package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/amiskov/appgate/pkg/config"
	"github.com/amiskov/appgate/pkg/logger"
	"github.com/amiskov/appgate/pkg/server"
	"github.com/amiskov/appgate/pkg/user"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("bad configuration: %v", err)
	}

	zl := logger.Run(cfg.LogLevel)
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		zl.Fatalf("unable to reach Redis at %s: %v", cfg.RedisAddress, err)
	}

	var users server.UserStore
	if cfg.DatabaseURI != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURI)
		if err != nil {
			zl.Fatalf("unable to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			zl.Fatalf("unable to reach PostgreSQL: %v", err)
		}
		repo := user.NewUserRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			zl.Fatalf("can't migrate users table: %v", err)
		}
		users = repo
	} else {
		zl.Warn("DATABASE_URI is empty, users are kept in memory")
		users = user.NewMemRepo()
	}

	srv, err := server.New(cfg, zl, rdb, users)
	if err != nil {
		zl.Fatalf("can't build server: %v", err)
	}
	if cfg.Production() {
		zl.Info("production mode, error details are hidden")
	}
	if err := srv.Run(ctx); err != nil {
		zl.Errorf("server stopped: %v", err)
		return
	}
	zl.Info("server stopped")
}
