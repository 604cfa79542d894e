// Package config loads the app's settings from the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ExpoPrefix marks the variables an Expo build exposes to the client bundle.
// EXPO_PUBLIC_FIREBASE_API_KEY is accepted wherever FIREBASE_API_KEY is.
const ExpoPrefix = "EXPO_PUBLIC_"

// Firebase identifies the Firebase project.
type Firebase struct {
	APIKey     string `env:"FIREBASE_API_KEY,required,notEmpty"`
	AuthDomain string `env:"FIREBASE_AUTH_DOMAIN"`
	ProjectID  string `env:"FIREBASE_PROJECT_ID,required,notEmpty"`
	// Endpoint points the Identity Toolkit client at an emulator.
	Endpoint string `env:"IDENTITY_TOOLKIT_ENDPOINT"`
}

// RequestURI is the URL sent with identity provider assertions, derived from the
// auth domain. It is empty when no auth domain is configured.
func (f Firebase) RequestURI() string {
	if f.AuthDomain == "" {
		return ""
	}
	return "https://" + f.AuthDomain
}

// Google holds the web client used for Google sign-in.
type Google struct {
	ClientID     string `env:"GOOGLE_WEB_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

// Apple holds the Sign in with Apple service configuration.
type Apple struct {
	ServiceID    string `env:"APPLE_SERVICE_ID"`
	ClientSecret string `env:"APPLE_CLIENT_SECRET"`
}

// Config is the full app configuration.
type Config struct {
	Firebase Firebase
	Google   Google
	Apple    Apple

	OAuthRedirectURL string     `env:"OAUTH_REDIRECT_URL"`
	Addr             string     `env:"PINGED_ADDR"             envDefault:":8080"`
	CredentialsPath  string     `env:"PINGED_CREDENTIALS_PATH"`
	SessionKey       string     `env:"PINGED_SESSION_KEY"`
	APIURL           string     `env:"PINGED_API_URL"`
	GRPCTarget       string     `env:"PINGED_GRPC_TARGET"`
	GRPCInsecure     bool       `env:"PINGED_GRPC_INSECURE"`
	LogFormat        string     `env:"LOG_FORMAT"              envDefault:"text"`
	LogLevel         slog.Level `env:"LOG_LEVEL"               envDefault:"info"`

	// Store selects where the signed-in session is persisted.
	Store              string `env:"PINGED_STORE"               envDefault:"file"`
	StoreDSN           string `env:"PINGED_STORE_DSN"           envDefault:"pinged.db"`
	DatastoreNamespace string `env:"PINGED_DATASTORE_NAMESPACE"`
}

// Session store backends.
const (
	StoreFile      = "file"
	StoreSQLite    = "sqlite"
	StoreDatastore = "datastore"
)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom reads the configuration from the given variables.
func LoadFrom(environ map[string]string) (*Config, error) {
	merged := make(map[string]string, len(environ))
	for k, v := range environ {
		if name, ok := strings.CutPrefix(k, ExpoPrefix); ok {
			if _, set := environ[name]; !set {
				merged[name] = v
			}
			continue
		}
		merged[k] = v
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.SessionKey != "" {
		if _, err := c.SealKey(); err != nil {
			errs = append(errs, err)
		}
	}
	if (c.Apple.ServiceID == "") != (c.Apple.ClientSecret == "") {
		errs = append(errs, errors.New("APPLE_SERVICE_ID and APPLE_CLIENT_SECRET must be set together"))
	}
	if c.APIURL != "" {
		if _, err := url.ParseRequestURI(c.APIURL); err != nil {
			errs = append(errs, fmt.Errorf("PINGED_API_URL: %w", err))
		}
	}
	switch c.Store {
	case StoreFile, StoreSQLite, StoreDatastore:
	default:
		errs = append(errs, fmt.Errorf("PINGED_STORE must be file, sqlite or datastore, got %q", c.Store))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// SealKey decodes PINGED_SESSION_KEY. It returns nil when no key is configured.
func (c *Config) SealKey() (*[32]byte, error) {
	if c.SessionKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("PINGED_SESSION_KEY is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("PINGED_SESSION_KEY must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

// AppleEnabled reports whether Apple sign-in is configured.
func (c *Config) AppleEnabled() bool {
	return c.Apple.ServiceID != ""
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
