// gentoken prints a signed bearer token for the given user and role. Handy
// for local development and for operators provisioning service credentials.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Varun-CA-08/Airline/api"
	"github.com/Varun-CA-08/Airline/domain"
)

func main() {
	user := flag.String("user", "dev-user", "token subject")
	role := flag.String("role", domain.RoleAdmin, "token role (admin|airline|baggage|user)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("missing JWT_SECRET")
	}

	tok, err := api.NewAuth(secret, *ttl).IssueToken(*user, *role)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Print(tok)
}
