package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/virtual-cafe/internal/broadcast"
	"github.com/iliyamo/virtual-cafe/internal/config"
	"github.com/iliyamo/virtual-cafe/internal/database"
	"github.com/iliyamo/virtual-cafe/internal/engine"
	"github.com/iliyamo/virtual-cafe/internal/generator"
	"github.com/iliyamo/virtual-cafe/internal/handler"
	"github.com/iliyamo/virtual-cafe/internal/queue"
	"github.com/iliyamo/virtual-cafe/internal/repository"
	"github.com/iliyamo/virtual-cafe/internal/router"
	notifier "github.com/iliyamo/virtual-cafe/internal/service"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis unavailable: the engine has no state without it")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql unavailable: %v", err)
	}
	menu := repository.NewMenuRepo(db)

	recordTTL := cfg.InactivityTimeout + 5*time.Minute // inactivity timeout + margin

	eng := engine.New(engine.Config{
		RoomIDs:           cfg.RoomIDs,
		SeatsPerRoom:      cfg.SeatsPerRoom,
		ChatHold:          cfg.ChatHold,
		IdleAfter:         cfg.IdleAfter,
		InactivityTimeout: cfg.InactivityTimeout,
		LeaveGrace:        cfg.LeaveGrace,
	}, engine.Deps{
		Seats:       store.NewSeatStore(rdb),
		Orders:      store.NewOrderStore(rdb, recordTTL),
		Consumables: store.NewConsumableStore(rdb, recordTTL),
		Activity:    store.NewActivityStore(rdb, recordTTL, time.Minute),
		Catalog:     menu,
		Generator:   generator.New(nil, 8*time.Second), // text generator attaches here when deployed
		Broadcast:   broadcast.NewRedisBroadcaster(rdb),
		Notifier:    notifier.New(cfg.AMQPURL),
		Cooldown:    broadcast.NewCooldown(rdb, cfg.RestoreCooldown),
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go eng.Run(ctx)

	// Drain the notification feed into logs/notifications.log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterActions(e, handler.NewActionHandler(eng), rdb)
	router.RegisterIntrospection(e, handler.NewIntrospectHandler(eng, menu), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, rooms=%v)", addr, cfg.Env, cfg.RoomIDs)

	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("http server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
