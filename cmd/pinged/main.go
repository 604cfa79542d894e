// Command pinged serves the app's sign-in and home screens backed by Firebase
// Authentication.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/glebarez/sqlite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"gorm.io/gorm"

	"github.com/pinged/authkit"
	"github.com/pinged/authkit/client"
	"github.com/pinged/authkit/client/stores/fs"
	"github.com/pinged/authkit/client/stores/gae"
	gormstore "github.com/pinged/authkit/client/stores/gorm"
	"github.com/pinged/authkit/config"
	"github.com/pinged/authkit/firebase"
	authgrpc "github.com/pinged/authkit/grpc"
	"github.com/pinged/authkit/oauth2"
	"github.com/pinged/authkit/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pinged exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, closeCreds, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCreds()

	fbOpts := []firebase.Option{firebase.WithLogger(logger)}
	if uri := cfg.Firebase.RequestURI(); uri != "" {
		fbOpts = append(fbOpts, firebase.WithRequestURI(uri))
	}
	provider, err := firebase.New(ctx, firebase.Config{
		APIKey:    cfg.Firebase.APIKey,
		ProjectID: cfg.Firebase.ProjectID,
		Endpoint:  cfg.Firebase.Endpoint,
	}, creds, fbOpts...)
	if err != nil {
		return err
	}
	defer provider.Close()

	store := authkit.NewSessionStore(provider, authkit.WithStoreLogger(logger))
	if err := store.Start(); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer store.Stop()

	receiver, err := newReceiver(cfg, logger)
	if err != nil {
		return err
	}
	subOpts := []authkit.SubmitterOption{authkit.WithSubmitterLogger(logger)}
	if cfg.GoogleEnabled() {
		subOpts = append(subOpts, authkit.WithGooglePrompt(oauth2.NewGooglePrompt(
			cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.OAuthRedirectURL, receiver, oauth2.WithLogger(logger))))
	}
	if cfg.AppleEnabled() {
		subOpts = append(subOpts, authkit.WithApplePrompt(oauth2.NewApplePrompt(
			cfg.Apple.ServiceID, cfg.Apple.ClientSecret, cfg.OAuthRedirectURL, receiver, oauth2.WithLogger(logger))))
	}
	submitter := authkit.NewSubmitter(provider, subOpts...)

	shellOpts := []web.ShellOption{
		web.WithLogger(logger),
		web.WithProviders(cfg.GoogleEnabled(), cfg.AppleEnabled()),
	}
	if cfg.APIURL != "" {
		apiClient := client.NewHTTPClient(provider, client.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
		shellOpts = append(shellOpts, web.WithAPI(cfg.APIURL, apiClient))
	}
	if cfg.GRPCTarget != "" {
		conn, err := dialService(cfg, store, provider)
		if err != nil {
			return err
		}
		defer conn.Close()
		shellOpts = append(shellOpts, web.WithServiceHealth(conn))
	}
	shell := web.NewShell(store, submitter, shellOpts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           shell.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr, "project", cfg.Firebase.ProjectID, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openCredentialStore(ctx context.Context, cfg *config.Config) (client.CredentialStore, func(), error) {
	noop := func() {}
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.StoreDSN), &gorm.Config{})
		if err != nil {
			return nil, noop, fmt.Errorf("open %s: %w", cfg.StoreDSN, err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, noop, fmt.Errorf("migrate %s: %w", cfg.StoreDSN, err)
		}
		return gormstore.NewCredentialStore(db), noop, nil

	case config.StoreDatastore:
		dsClient, err := datastore.NewClient(ctx, cfg.Firebase.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("datastore client: %w", err)
		}
		store := gae.NewCredentialStore(dsClient, cfg.DatastoreNamespace).WithContext(ctx)
		return store, func() { dsClient.Close() }, nil
	}

	var opts []fs.Option
	key, err := cfg.SealKey()
	if err != nil {
		return nil, noop, err
	}
	if key != nil {
		opts = append(opts, fs.WithSealKey(key))
	}
	store, err := fs.NewFSCredentialStore(cfg.CredentialsPath, "pinged", opts...)
	if err != nil {
		return nil, noop, err
	}
	return store, noop, nil
}

// dialService connects to the app's gRPC backend; every call carries the
// signed-in user's ID and ID token.
func dialService(cfg *config.Config, store *authkit.SessionStore, provider *firebase.Provider) (*grpc.ClientConn, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.GRPCInsecure {
		creds = insecure.NewCredentials()
	}
	return authgrpc.NewClient(cfg.GRPCTarget, authgrpc.NewInterceptorConfig(store, provider),
		grpc.WithTransportCredentials(creds))
}

// newReceiver serves OAuth redirects on the configured redirect URL (or any free
// local port) and asks the operator to open the consent page.
func newReceiver(cfg *config.Config, logger *slog.Logger) (*oauth2.LoopbackReceiver, error) {
	r := &oauth2.LoopbackReceiver{
		Logger: logger,
		Open: func(_ context.Context, authURL string) error {
			logger.Info("open this URL to continue signing in", "url", authURL)
			return nil
		},
	}
	if cfg.OAuthRedirectURL != "" {
		u, err := url.Parse(cfg.OAuthRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("OAUTH_REDIRECT_URL: %w", err)
		}
		r.Addr = u.Host
		r.CallbackPath = u.Path
	}
	return r, nil
}
