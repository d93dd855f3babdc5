package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/api"
	"github.com/Varun-CA-08/Airline/bridge"
	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/fanout"
	"github.com/Varun-CA-08/Airline/pipeline"
	"github.com/Varun-CA-08/Airline/storage"
)

// recordStore is what one process needs from the durable store: the write
// half for the pipeline and the read half for the API.
type recordStore interface {
	pipeline.Store
	api.Reader
}

func main() {
	if envBool("DEBUG", false) {
		log.SetLevel(log.DebugLevel)
	}
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store recordStore
	var eventBus bus.Bus
	if cfg.DevMode {
		log.Warn("DEV_MODE: using in-memory store and bus")
		store = storage.NewMemStore()
		eventBus = bus.NewMemory()
	} else {
		mongoStore, err := storage.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoUser, cfg.MongoPass)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		defer mongoStore.Close(context.Background())
		store = mongoStore

		js, err := bus.ConnectJetStream(cfg.NATSURL, bus.TopicFlightEvents, bus.TopicBaggageEvents)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		eventBus = js
	}
	defer eventBus.Close()

	cache := storage.NewCache(redisClient(cfg.RedisConn), cfg.CacheTTL)

	hub := fanout.NewHub(cfg.SessionBuffer)
	go bridge.New(eventBus, hub).Run(ctx)

	coordinator := pipeline.New(store, eventBus, cache, pipeline.Config{CacheTTL: cfg.CacheTTL})

	auth := api.NewAuth(cfg.JWTSecret, cfg.TokenTTL)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("airline"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, coordinator, store, cache, hub, auth, log.StandardLogger())

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	cancel()            // stops the bridge
	coordinator.Close() // drains in-flight publish retries
}

// redisClient builds the cache client. An empty connection string disables
// caching; everything then reads through to the store.
func redisClient(conn string) *redis.Client {
	if conn == "" {
		log.Warn("no redis configured; cache disabled")
		return nil
	}
	opts, err := redis.ParseURL(conn)
	if err != nil {
		parts := strings.Split(conn, ",")
		opts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				opts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					opts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redis.NewClient(opts)
}
