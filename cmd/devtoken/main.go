// Command devtoken prints an access token for local testing against a
// server that shares JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/showtime-reservation/internal/middleware"
	"github.com/iliyamo/showtime-reservation/internal/utils"
)

func main() {
	var (
		userID uint64
		role   string
		ttl    time.Duration
	)
	flag.Uint64Var(&userID, "user", 1, "user id placed in the sub claim")
	flag.StringVar(&role, "role", middleware.RoleCustomer, "CUSTOMER or ADMIN")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := utils.NewAccessToken(secret, userID, role, ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
