package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thestack-server/internal/agent"
	"thestack-server/internal/engine"
	"thestack-server/internal/server"
	"thestack-server/internal/version"
	"thestack-server/pkg/logger"
)

func init() {
	// .env не обязателен: при его отсутствии работаем на чистом окружении.
	_ = godotenv.Load()
	logger.Init()
}

func main() {
	// 1. Парсинг конфигурации
	var saveDir string
	var bots int
	flag.StringVar(&saveDir, "save", "", "Override save directory (default from TC_SAVE_DIR)")
	flag.IntVar(&bots, "bots", 0, "Number of headless bots to spawn")
	flag.Parse()

	logger.Log.Info("Starting tower sync server...")
	logger.Log.Info(version.String())

	cfg, err := engine.LoadConfig()
	if err != nil {
		logger.Log.Fatal("Config error: ", err)
	}
	if saveDir != "" {
		cfg.SaveDir = saveDir
	}

	// 2. Инициализация ядра
	gameService := engine.NewService(cfg)
	gameService.Start()

	// Боты подключаются к хабу как обычные клиенты
	runningBots := make([]*agent.Bot, 0, bots)
	for i := 0; i < bots; i++ {
		bot := agent.NewBot(fmt.Sprintf("Bot-%d", i+1), gameService)
		go bot.Run()
		runningBots = append(runningBots, bot)
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 3. Запуск сервера
	srv := server.New(gameService, cfg.Port)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error: ", err)
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")

	for _, bot := range runningBots {
		bot.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("HTTP shutdown error")
	}

	// Остановка движка делает финальное сохранение башни.
	gameService.Stop()

	logger.Log.Info("Done.")
}
