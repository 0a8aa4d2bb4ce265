// tokengen issues bearer tokens for operators and smoke tests. It signs with
// JWT_SECRET from the environment.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/service"
	"github.com/noah-isme/dz-manifest-api/pkg/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		userID   string
		role     string
		email    string
		fullName string
		ttl      time.Duration
	)
	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "user", "", "subject user id (required)")
	flagSet.StringVar(&role, "role", string(models.RoleManifest), "ADMIN, MANIFEST or INSTRUCTOR")
	flagSet.StringVar(&email, "email", "", "optional email claim")
	flagSet.StringVar(&fullName, "name", "", "optional full name claim")
	flagSet.DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_EXPIRATION)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ttl <= 0 {
		ttl = cfg.JWT.Expiration
	}
	auth := service.NewAuthService(nil, nil, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: ttl,
		Issuer:            cfg.JWT.Issuer,
	})
	token, expiresAt, err := auth.IssueToken(service.TokenRequest{
		UserID:   userID,
		Role:     models.UserRole(strings.ToUpper(role)),
		Email:    email,
		FullName: fullName,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
	return nil
}
