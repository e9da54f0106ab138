package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gthanmon/gemini-account-manager/internal/auth"
	"github.com/gthanmon/gemini-account-manager/internal/model"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... go run scripts/issue-token.go <user-id> <admin|user> [ttl]\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET is not set\n")
		os.Exit(1)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "account-manager"
	}

	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl: %v\n", err)
			os.Exit(1)
		}
		ttl = d
	}

	token, err := auth.NewVerifier(secret, issuer).Issue(model.Caller{UserID: os.Args[1], Role: model.Role(os.Args[2])}, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
