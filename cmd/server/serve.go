package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/infrastructure/cache"
	"marketplace/internal/infrastructure/database"
	"marketplace/internal/infrastructure/lock"
	"marketplace/internal/infrastructure/mq"
	"marketplace/internal/job"
	"marketplace/internal/service"
	"marketplace/pkg/idgen"

	"github.com/spf13/cobra"
)

var workerID int64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the outbox sender",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int64Var(&workerID, "worker-id", 1, "Snowflake worker id, unique per instance")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := idgen.Init(workerID); err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// 账户锁与商品缓存：开启 Redis 时跨实例共享，否则使用进程内锁且不缓存
	var locker service.Locker = lock.NewLocalLocker()
	var catalogCache service.CatalogCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		locker = lock.NewRedisLocker(redisClient, time.Duration(cfg.Business.LockTTLSeconds)*time.Second)
		catalogCache = cache.NewCatalogCache(redisClient, time.Duration(cfg.Business.CatalogCacheTTLSeconds)*time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		publisher, err := mq.InitKafka(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher, cfg.Business.MaxRetryCount)
		go outboxSender.Start(ctx)
		// 先于 publisher 和数据库关闭，等待当前批次写完
		defer func() {
			cancel()
			<-outboxSender.Done()
		}()
	}

	h := handler.NewHandler(
		service.NewMarketService(db, cfg, locker, catalogCache),
		service.NewCatalogService(db, catalogCache),
		service.NewAccountService(db, cfg.Business.StartingGold),
	)
	router := handler.SetupRouter(h, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("服务启动，监听端口: %d, 存储: %s", cfg.Server.Port, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Println("正在关闭服务...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
	return nil
}
