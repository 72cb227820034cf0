package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amanazads/flashbites-sub000/internal/broker"
	"github.com/amanazads/flashbites-sub000/internal/config"
	"github.com/amanazads/flashbites-sub000/internal/db"
	"github.com/amanazads/flashbites-sub000/internal/dispatch"
	"github.com/amanazads/flashbites-sub000/internal/notify"
	"github.com/amanazads/flashbites-sub000/internal/orders"
	"github.com/amanazads/flashbites-sub000/internal/realtime"
	"github.com/amanazads/flashbites-sub000/internal/server"
	"github.com/amanazads/flashbites-sub000/repository"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("Configuration loaded: %v", cfg)

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	usersRepo := repository.NewUserRepository(d)
	restaurantsRepo := repository.NewRestaurantRepository(d)
	ordersRepo := repository.NewOrderRepository(d)
	notificationsRepo := repository.NewNotificationRepository(d)
	subscriptionsRepo := repository.NewSubscriptionRepository(d)

	registry := realtime.NewRegistry()

	var push dispatch.PushSender
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		push = notify.NewPushService(subscriptionsRepo, cfg.Push.Subscriber, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
	} else {
		log.Printf("push delivery disabled: no VAPID key pair configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bridge *broker.Bridge
	var brokerPub dispatch.BrokerPublisher
	if cfg.Broker.URL != "" {
		bridge, err = broker.Dial(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			log.Fatalf("dial broker: %v", err)
		}
		defer bridge.Close()
		brokerPub = bridge
		go func() {
			if err := bridge.Mirror(ctx, registry); err != nil {
				log.Printf("broker mirror stopped: %v", err)
			}
		}()
		log.Printf("cross-instance fanout bridge enabled on exchange %s", cfg.Broker.Exchange)
	}

	dispatcher := dispatch.New(registry, notificationsRepo, usersRepo, restaurantsRepo, push, brokerPub)
	orderService := orders.NewService(ordersRepo, restaurantsRepo, dispatcher, cfg.Orders.DedupeWindow)

	sweeper := notify.NewSweeper(notificationsRepo, cfg.Orders.SweepInterval)
	go sweeper.Run(ctx)

	engine := server.New(server.Deps{
		JWTSecret:     cfg.Auth.JWTSecret,
		Orders:        orderService,
		Notifications: notificationsRepo,
		Subscriptions: subscriptionsRepo,
		Realtime:      realtime.NewHandler(registry, cfg.Auth.JWTSecret),
	})

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: engine,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	cancel()
	dispatcher.Drain()
}
