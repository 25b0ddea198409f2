package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf(".env load warning: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot init error: %v", err)
	}
	log.Printf("authorized as %s", bot.Self.UserName)

	var source ScheduleSource
	switch cfg.Source {
	case sourceAPI:
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		tokens := NewTokenManager(cfg.APIBaseURL, cfg.APIUsername, cfg.APIPassword, httpClient)
		source = newAPISource(cfg.APIBaseURL, httpClient, tokens)
	default:
		source = newStaticSource()
	}
	log.Printf("schedule source: %s", source.Name())

	app := newBotApp(bot, cfg, source)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("signal received: %s, stopping", s)
		bot.StopReceivingUpdates()
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	for update := range bot.GetUpdatesChan(u) {
		app.handleUpdate(update)
	}
	log.Printf("update loop stopped")
}
