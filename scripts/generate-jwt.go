//go:build ignore

// This script generates a bearer token for the orchestrator API.
// Run with: go run scripts/generate-jwt.go [issuer|investor]

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	// Configuration - must match the auth section of config.yaml
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "smartbond"
	}

	role := "issuer"
	if len(os.Args) > 1 {
		role = os.Args[1]
	}
	if role != "issuer" && role != "investor" {
		fmt.Fprintf(os.Stderr, "unknown role %q (want issuer or investor)\n", role)
		os.Exit(1)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  issuer,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Generated API token:")
	fmt.Println()
	fmt.Println(signed)
	fmt.Println()
	fmt.Println("Use it as:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/bonds\n", signed)
}
