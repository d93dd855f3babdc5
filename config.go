package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type config struct {
	ListenAddr string
	DevMode    bool

	MongoURI      string
	MongoDatabase string
	MongoUser     string
	MongoPass     string

	RedisConn string
	CacheTTL  time.Duration

	NATSURL string

	JWTSecret string
	TokenTTL  time.Duration

	SessionBuffer int
}

// loadConfig reads configuration from the environment, after loading an
// optional .env file. Missing required values are fatal.
func loadConfig() config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	cfg := config{
		ListenAddr:    envString("LISTEN_ADDR", ":8080"),
		DevMode:       envBool("DEV_MODE", false),
		MongoURI:      envString("MONGO_URI", ""),
		MongoDatabase: envString("MONGO_DATABASE", "airline"),
		MongoUser:     envString("MONGO_USER", ""),
		MongoPass:     envString("MONGO_PASSWORD", ""),
		RedisConn:     envString("REDIS_CONNECTION_STRING", ""),
		CacheTTL:      envDur("CACHE_TTL", time.Hour),
		NATSURL:       envString("NATS_URL", ""),
		JWTSecret:     envString("JWT_SECRET", ""),
		TokenTTL:      envDur("TOKEN_TTL", 24*time.Hour),
		SessionBuffer: envInt("SESSION_BUFFER", 16),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("missing JWT_SECRET")
	}
	if !cfg.DevMode {
		if cfg.MongoURI == "" {
			log.Fatal("missing MONGO_URI")
		}
		if cfg.NATSURL == "" {
			log.Fatal("missing NATS_URL")
		}
	}
	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: must be a positive integer", key)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: must be a positive duration", key)
	}
	return d
}
