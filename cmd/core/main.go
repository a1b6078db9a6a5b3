package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/in/grpc"
	telegram_adapter "github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/in/telegram"
	gorm_adapter "github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/out/gormdb"
	memory_adapter "github.com/JoeShih716/go-chat-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-chat-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-chat-ledger/internal/config"
	"github.com/JoeShih716/go-chat-ledger/pkg/database"
	"github.com/JoeShih716/go-chat-ledger/pkg/logger"
	"github.com/JoeShih716/go-chat-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(cfg.Log, os.Stderr)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳本狀態
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. 初始化 UseCase
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	ledger := usecase.NewLedgerService(store,
		usecase.WithLogger(log),
		usecase.WithLocation(loc),
	)

	var (
		wg         sync.WaitGroup
		grpcServer *grpc.Server
		botAPI     *tgbotapi.BotAPI
	)

	// 4. gRPC Adapter
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		s := grpc_adapter.NewServer(ledger, log)
		grpcServer = s
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("starting gRPC server", slog.String("addr", cfg.GRPC.Addr))
			if err := s.Serve(lis); err != nil {
				log.Error("gRPC server stopped", slog.Any("error", err))
				stop()
			}
		}()
	}

	// 5. Telegram Adapter
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			if grpcServer != nil {
				grpcServer.Stop()
				wg.Wait()
			}
			return err
		}
		log.Info("authorized on telegram", slog.String("bot", api.Self.UserName))
		botAPI = api

		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Telegram.PollTimeout
		updates := api.GetUpdatesChan(u)

		sessions := telegram_adapter.NewSessions(cfg.Telegram.SessionTimeout, nil)
		bot := telegram_adapter.NewBot(api, ledger, sessions, cfg.Ledger.HistoryLimit, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.Run(ctx, updates)
		}()
	}

	// Wait for interrupt
	<-ctx.Done()
	log.Info("shutting down server...")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}
	// 所有 adapter 停止後才關閉帳本
	wg.Wait()
	return nil
}

// openStore 依 storage.backend 建立 usecase.Store，回傳的 close 釋放底層資源
func openStore(cfg config.Config, log *slog.Logger) (usecase.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.WALPath), 0o755); err != nil {
			return nil, nil, err
		}
		walFile, err := wal.NewWAL(cfg.Storage.WALPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := memory_adapter.NewMutexLedger(walFile)
		if err != nil {
			_ = walFile.Close()
			return nil, nil, err
		}
		log.Info("ledger recovered from WAL", slog.String("path", cfg.Storage.WALPath))
		return store, func() { _ = walFile.Close() }, nil
	default:
		if cfg.Database.Driver == database.DriverSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return nil, nil, err
			}
		}
		client, err := database.NewClient(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to database", slog.String("driver", cfg.Database.Driver))
		store, err := gorm_adapter.NewGormLedger(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	}
}
