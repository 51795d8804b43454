package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"go-todo-web/internal/config"
	"go-todo-web/internal/database"
	"go-todo-web/internal/flash"
	"go-todo-web/internal/logging"
	"go-todo-web/internal/repositories"
	"go-todo-web/internal/routes"
)

// store はルーターに渡すリポジトリと、終了時に閉じる接続です。
type store struct {
	deps  routes.Dependencies
	close func() error
}

// openStore は DB_DRIVER に応じてMySQLかSQLiteのリポジトリを用意します。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		db, err := database.InitDB(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		return &store{
			deps: routes.Dependencies{
				TodoRepo: repositories.NewMySQLTodoRepository(db),
				UserRepo: repositories.NewMySQLUserRepository(db),
				DB:       db,
			},
			close: db.Close,
		}, nil
	default:
		gdb, err := database.OpenSQLite(cfg.Database.SQLitePath, database.NewGormLogger())
		if err != nil {
			return nil, err
		}
		var sqlDB *sql.DB
		if sqlDB, err = gdb.DB(); err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		return &store{
			deps: routes.Dependencies{
				TodoRepo: repositories.NewGormTodoRepository(gdb),
				UserRepo: repositories.NewGormUserRepository(gdb),
				DB:       sqlDB,
			},
			close: sqlDB.Close,
		}, nil
	}
}

// openFlash は REDIS_URL があればRedis、無ければプロセス内のストアを返します。
func openFlash(ctx context.Context, cfg *config.Config) (flash.Store, func() error, error) {
	if cfg.Redis.URL == "" {
		log.Info("REDIS_URL not set, using in-memory flash store")
		return flash.NewMemoryStore(cfg.Redis.FlashTTL), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return flash.NewRedisStore(client, cfg.Redis.FlashTTL), client.Close, nil
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("データベースの初期化に失敗しました: %v", err)
	}
	flashStore, closeFlash, err := openFlash(ctx, cfg)
	if err != nil {
		st.close()
		log.Fatalf("フラッシュストアの初期化に失敗しました: %v", err)
	}

	deps := st.deps
	deps.Config = cfg
	deps.Flash = flashStore
	r, err := routes.SetupRouter(deps)
	if err != nil {
		log.Fatalf("ルーターの初期化に失敗しました: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Infof("Server listening on port %s (driver=%s)", cfg.Port, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("サーバーの起動に失敗しました: %v", err)
		}
	}()

	// HTTPサーバーを止めてから接続を閉じます。
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info("Graceful shutdown initiated...")
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return errors.Join(st.close(), closeFlash())
		},
	})

	exitCode := <-wait
	log.Infof("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
