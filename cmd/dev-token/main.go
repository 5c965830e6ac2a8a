// Command dev-token mints an access token for local testing against
// stars-api. It signs with the same JWT_SECRET and JWT_ISSUER the server reads.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/stars-api/internal/service"
	"github.com/noah-isme/stars-api/pkg/config"
)

func main() {
	username := flag.String("username", "", "token subject (acting username)")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: dev-token -username alice [-name 'Alice Tan'] [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	token, expires, err := tokens.Mint(*username, *name, *ttl)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
}
