// Package portalcli is the command line entrypoint: a setup command
// that writes the env file and a run command that serves the portal.
package portalcli

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"

	"github.com/beeforce/configportal/internal/envutil"
	"github.com/beeforce/configportal/internal/portalapp"
)

var ErrUsage = errors.New("usage")

func Execute(args []string) error {
	if len(args) < 1 {
		return usageError()
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:])
	case "run":
		return runServe(args[1:])
	default:
		return usageError()
	}
}

func usageError() error {
	return fmt.Errorf("%w: configportal <setup|run> [...]", ErrUsage)
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: configportal setup --client-auth <credential> [--host <url>] [--force]")
	fmt.Fprintln(w, "       configportal run")
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	clientAuth := fs.String("client-auth", "", "pre-shared OAuth client credential (required)")
	host := fs.String("host", "", "default backend host URL")
	addr := fs.String("addr", ":3000", "portal listen address")
	ttl := fs.Int("session-ttl", 3600, "session lifetime in seconds")
	envPath := fs.String("env-file", ".env", "path to .env file")
	force := fs.Bool("force", false, "overwrite existing env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *clientAuth == "" {
		return errors.New("--client-auth is required")
	}

	values := map[string]string{
		"CLIENT_AUTH":         *clientAuth,
		"BEEFORCE_HOST":       *host,
		"PORTAL_ADDR":         *addr,
		"SESSION_TTL_SECONDS": fmt.Sprintf("%d", *ttl),
		"SESSION_KEY":         hex.EncodeToString(securecookie.GenerateRandomKey(32)),
	}

	if err := envutil.WriteDotEnv(*envPath, values, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *envPath)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}

	cfg, err := portalapp.DefaultConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := portalapp.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
