// seedadmin provisions the initial admin user so a fresh deployment has at
// least one account that can mint further staff accounts. Running it twice
// is harmless.
package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/storage"
)

func main() {
	godotenv.Load()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("admin seed starting")

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		log.Fatal("missing MONGO_URI")
	}
	dbName := os.Getenv("MONGO_DATABASE")
	if dbName == "" {
		dbName = "airline"
	}
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.NewStore(ctx, uri, dbName, os.Getenv("MONGO_USER"), os.Getenv("MONGO_PASSWORD"))
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer store.Close(context.Background())

	if _, err := store.UserByEmail(ctx, email); err == nil {
		log.WithField("email", email).Info("admin already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Fatalf("lookup admin: %v", err)
	}

	admin, err := store.CreateUser(ctx, domain.User{
		Name:  "Admin",
		Email: email,
		Role:  domain.RoleAdmin,
	})
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.WithFields(log.Fields{"id": admin.ID, "email": admin.Email}).Info("admin user created")
}
