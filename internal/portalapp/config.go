package portalapp

import (
	"time"

	"github.com/beeforce/configportal/internal/envutil"
)

type Config struct {
	Addr           string
	DefaultHost    string
	ClientAuth     string
	SessionKey     string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	InsecureTLS    bool
	ReadTimeout    time.Duration
}

// DefaultConfigFromEnv builds the runtime config. CLIENT_AUTH has no
// default on purpose: the pre-shared client credential must come from
// the environment, and startup fails without it.
func DefaultConfigFromEnv() (Config, error) {
	clientAuth, err := envutil.Require("CLIENT_AUTH")
	if err != nil {
		return Config{}, err
	}
	return Config{
		Addr:           envutil.EnvOrDefault("PORTAL_ADDR", ":3000"),
		DefaultHost:    envutil.EnvOrDefault("BEEFORCE_HOST", ""),
		ClientAuth:     clientAuth,
		SessionKey:     envutil.EnvOrDefault("SESSION_KEY", ""),
		SessionTTL:     time.Duration(envutil.EnvInt("SESSION_TTL_SECONDS", 3600)) * time.Second,
		RequestTimeout: time.Duration(envutil.EnvInt("REQUEST_TIMEOUT_SECONDS", 20)) * time.Second,
		InsecureTLS:    envutil.EnvBool("BEEFORCE_INSECURE_TLS", false),
		ReadTimeout:    5 * time.Second,
	}, nil
}
