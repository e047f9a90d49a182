// Command token mints an access token for an existing account or operator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/alfanzaky/refledger/config"
	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/auth"
)

func main() {
	subject := pflag.StringP("subject", "s", "", "user id placed in the token subject")
	role := pflag.StringP("role", "r", domain.RoleUser, "token role (USER or ADMIN)")
	pflag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "--subject is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewJWTAuthService(cfg.Auth, nil).GenerateAccessToken(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
