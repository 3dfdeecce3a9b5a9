// Command devtoken mints an access token for calling the API by hand.
//
//	go run ./cmd/devtoken -company 0192f... -subject ops
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/joho/godotenv"
)

func main() {
	companyID := flag.String("company", "", "company id the token is bound to")
	subject := flag.String("subject", "devtoken", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	// Only the signing secret is needed, so the full config is not loaded.
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY is required")
		os.Exit(1)
	}

	token, expiresAt, err := jwt.NewJWTService(secret, ttl.String()).GenerateAccessToken(*subject, *companyID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error generating token:", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Unix(expiresAt, 0).Format(time.RFC3339))
}
