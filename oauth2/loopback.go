package oauth2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// DefaultCallbackPath is where a LoopbackReceiver expects the provider redirect.
const DefaultCallbackPath = "/callback"

const closeWindowPage = `<!DOCTYPE html><html><body><p>Sign-in complete. You can close this window.</p></body></html>`

// LoopbackReceiver is a Receiver that serves the redirect on a local port, the way
// desktop and CLI clients complete a native OAuth flow.
type LoopbackReceiver struct {
	// Addr to listen on. Defaults to "127.0.0.1:0" (any free port).
	Addr string
	// CallbackPath defaults to DefaultCallbackPath.
	CallbackPath string
	// Open presents the authorization URL, usually by launching a browser.
	Open func(ctx context.Context, authURL string) error
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Receive implements Receiver. Only a request carrying the expected state
// completes the wait; anything else is answered with 400 and ignored.
func (l *LoopbackReceiver) Receive(ctx context.Context, state string, authURL func(redirectURL string) string) (*Callback, error) {
	if l.Open == nil {
		return nil, errors.New("loopback receiver has no Open function")
	}
	addr := l.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	path := l.CallbackPath
	if path == "" {
		path = DefaultCallbackPath
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("loopback listen: %w", err)
	}

	results := make(chan *Callback, 1)
	r := mux.NewRouter()
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, "bad callback", http.StatusBadRequest)
			return
		}
		cb := &Callback{
			Code:             req.Form.Get("code"),
			State:            req.Form.Get("state"),
			IDToken:          req.Form.Get("id_token"),
			Error:            req.Form.Get("error"),
			ErrorDescription: req.Form.Get("error_description"),
		}
		if cb.State != state {
			logger.Warn("ignoring callback with unexpected state", "remote", req.RemoteAddr)
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		select {
		case results <- cb:
		default:
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, closeWindowPage)
	}).Methods(http.MethodGet, http.MethodPost)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("loopback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	redirectURL := "http://" + ln.Addr().String() + path
	if err := l.Open(ctx, authURL(redirectURL)); err != nil {
		return nil, fmt.Errorf("opening authorization page: %w", err)
	}

	select {
	case cb := <-results:
		return cb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
