package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/flagx"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server"
	"github.com/dmitrijs2005/secureshare/internal/server/config"
)

var errPlaceholderSigningSecret = errors.New("issue-owner-token: set JWT_SECRET to the secret of the running server")

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	// -issue-owner-token <user id> prints a day-long owner token and exits.
	owner := flagx.LookupString(os.Args[1:], "issue-owner-token")

	if err := prepareSecrets(ctx, logger, cfg, owner != ""); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if owner != "" {
		defer app.Close()
		token, err := app.OwnerToken(owner, 24*time.Hour)
		if err != nil {
			log.Printf("%v", err)
			return
		}
		fmt.Println(token)
		return
	}

	app.Run(ctx)

}

// prepareSecrets gives an in-memory instance still on placeholder secrets
// random ones. A token issued under a random secret could never be checked
// by another process, so issuing one on the placeholder is refused instead.
func prepareSecrets(ctx context.Context, logger logging.Logger, cfg *config.Config, issuingToken bool) error {
	if cfg.Storage != "memory" {
		return nil
	}
	if issuingToken {
		if isPlaceholder(cfg.JWTSecret, config.DevJWTSecret) {
			return errPlaceholderSigningSecret
		}
		return nil
	}
	if err := ephemeralSecret(ctx, logger, &cfg.JWTSecret, config.DevJWTSecret, "jwt"); err != nil {
		return err
	}
	return ephemeralSecret(ctx, logger, &cfg.PasscodeSecret, config.DevPasscodeSecret, "passcode")
}

func isPlaceholder(secret, placeholder string) bool {
	return secret == "" || secret == placeholder
}

func ephemeralSecret(ctx context.Context, logger logging.Logger, secret *string, placeholder, name string) error {
	if !isPlaceholder(*secret, placeholder) {
		return nil
	}
	s, err := common.MakeRandHexString(32)
	if err != nil {
		return fmt.Errorf("generate %s secret: %w", name, err)
	}
	*secret = s
	logger.Warn(ctx, "generated ephemeral secret", "secret", name)
	return nil
}
