package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/amirphl/futures-trader/internal/config"
	"github.com/amirphl/futures-trader/internal/db"
	"github.com/amirphl/futures-trader/internal/exchange"
	"github.com/amirphl/futures-trader/internal/metrics"
	"github.com/amirphl/futures-trader/internal/notifier"
	"github.com/amirphl/futures-trader/internal/order"
	"github.com/amirphl/futures-trader/internal/strategy"
)

// eventJournalPruner periodically deletes journal events older than the
// retention window so the events table does not grow without bound.
func eventJournalPruner(ctx context.Context, storage db.Storage, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	log.Println("Starting event journal pruner, retention:", retention)

	for {
		select {
		case <-ctx.Done():
			log.Println("Event journal pruner stopped")
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			for _, eventType := range []string{"strategy", "order", "error"} {
				if err := storage.DeleteEvents(ctx, eventType, cutoff); err != nil {
					log.Printf("Failed to prune %s events: %v", eventType, err)
				}
			}
		}
	}
}

func main() {
	// .env is optional, real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg := config.MustLoadConfig()
	log.Println("Starting Futures Trader, testnet:", cfg.Testnet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	var storage db.Storage
	if cfg.DBConnStr != "" {
		pg, err := db.New(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		storage = pg
		log.Println("Connected to Postgres")
	} else {
		storage = db.NewMemory()
		log.Println("No DB_CONN_STR set, using in-memory storage")
	}
	defer storage.Close()

	if cfg.EventRetention > 0 {
		go eventJournalPruner(ctx, storage, cfg.EventRetention)
	}

	var notif notifier.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)
		if err != nil {
			log.Fatalf("Failed to set up Telegram notifier: %v", err)
		}
		notif = tg
		log.Println("Telegram notifications enabled")
	} else {
		notif = notifier.Noop{}
	}

	m := metrics.NewDefault()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler()}
		go func() {
			log.Println("Serving metrics on", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ex, err := exchange.NewBinanceExchange(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.Testnet)
	if err != nil {
		log.Fatalf("Failed to connect to Binance: %v", err)
	}
	log.Println("Connected to", ex.Name())

	orders := order.NewService(ex, storage, m)

	engine := strategy.NewEngine(orders, strategy.NewMemoryRegistry(), storage, notif, m, strategy.Config{
		OCOPollInterval:  cfg.OCOPollInterval,
		GridPollInterval: cfg.GridPollInterval,
	})
	defer engine.Close()

	log.Println("Futures Trader running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Println("Shutting down...")
}
