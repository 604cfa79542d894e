// Package web serves the app's screens over HTTP. Every page runs the route
// guard for its location, so signed-out users never see app screens and
// signed-in users never see the sign-in screens.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/pinged/authkit"
)

// Flash keys kept in the scs session between a POST and the page it redirects to.
const (
	flashAlertTitle   = "alert.title"
	flashAlertMessage = "alert.message"
	flashEmail        = "form.email"
	flashErrorPrefix  = "error."
)

// DefaultSettleTimeout bounds how long a successful submission waits for the
// session store to reflect it before redirecting.
const DefaultSettleTimeout = 3 * time.Second

// ShellOption configures a Shell
type ShellOption func(*Shell)

// WithRoutes overrides authkit.DefaultRoutes.
func WithRoutes(routes authkit.Routes) ShellOption {
	return func(s *Shell) { s.routes = routes }
}

// WithSessionManager sets the scs session manager used for flash messages.
func WithSessionManager(sm *scs.SessionManager) ShellOption {
	return func(s *Shell) { s.Session = sm }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ShellOption {
	return func(s *Shell) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSettleTimeout overrides DefaultSettleTimeout.
func WithSettleTimeout(d time.Duration) ShellOption {
	return func(s *Shell) { s.settle = d }
}

// WithProviders says which social sign-in buttons to show.
func WithProviders(google, apple bool) ShellOption {
	return func(s *Shell) {
		s.google = google
		s.apple = apple
	}
}

// WithAPI makes the home screen ping the app's API at baseURL through apiClient,
// which is expected to attach the user's ID token (see client.NewHTTPClient).
func WithAPI(baseURL string, apiClient *http.Client) ShellOption {
	return func(s *Shell) {
		s.apiURL = strings.TrimSuffix(baseURL, "/")
		s.apiClient = apiClient
	}
}

// WithServiceHealth makes the home screen run a gRPC health check over conn, which
// is expected to carry the session (see the grpc package's NewClient).
func WithServiceHealth(conn grpc.ClientConnInterface) ShellOption {
	return func(s *Shell) { s.health = healthpb.NewHealthClient(conn) }
}

// Shell is the app's HTTP front end.
type Shell struct {
	Session *scs.SessionManager

	store     *authkit.SessionStore
	submitter *authkit.Submitter
	routes    authkit.Routes
	logger    *slog.Logger
	settle    time.Duration
	google    bool
	apple     bool
	apiURL    string
	apiClient *http.Client
	health    healthpb.HealthClient

	router *mux.Router
}

// NewShell creates a Shell over a started store.
func NewShell(store *authkit.SessionStore, submitter *authkit.Submitter, opts ...ShellOption) *Shell {
	s := &Shell{
		store:     store,
		submitter: submitter,
		routes:    authkit.DefaultRoutes(),
		logger:    slog.Default(),
		settle:    DefaultSettleTimeout,
		apple:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes.EnsureDefaults()
	if s.Session == nil {
		s.Session = scs.New()
		s.Session.Cookie.Name = "pinged_session"
		s.Session.Cookie.SameSite = http.SameSiteLaxMode
		s.Session.Lifetime = time.Hour
	}
	s.setupRoutes()
	return s
}

// Handler returns the shell's handler with session loading applied.
func (s *Shell) Handler() http.Handler {
	return s.Session.LoadAndSave(s.router)
}

func (s *Shell) setupRoutes() {
	r := mux.NewRouter()
	auth, app := s.routes.AuthEntry, s.routes.AppEntry

	r.HandleFunc(auth, s.guarded("welcome")).Methods(http.MethodGet)
	r.HandleFunc(auth+"/email", s.guarded("email")).Methods(http.MethodGet)
	r.HandleFunc(auth+"/email", s.submitEmail).Methods(http.MethodPost)
	r.HandleFunc(auth+"/google", s.submitOAuth(s.submitter.SignInWithGoogle)).Methods(http.MethodPost)
	r.HandleFunc(auth+"/apple", s.submitOAuth(s.submitter.SignInWithApple)).Methods(http.MethodPost)

	r.HandleFunc(app, s.guarded("home")).Methods(http.MethodGet)
	r.HandleFunc(app+"/signout", s.signOut).Methods(http.MethodPost)
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, app, http.StatusSeeOther)
	}).Methods(http.MethodGet)

	s.router = r
}

// guarded renders page only when the guard lets the current session see it.
func (s *Shell) guarded(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nav := newRequestNavigator(r)
		guard := authkit.NewRouteGuard(s.store, nav, s.routes, authkit.WithGuardLogger(s.logger))

		switch guard.Evaluate() {
		case authkit.RenderPlaceholder:
			w.Header().Set("Refresh", "1")
			s.render(w, http.StatusOK, "loading", &pageData{Routes: s.routes, Loading: authkit.PlaceholderText})
		case authkit.RedirectToAuth, authkit.RedirectToApp:
			http.Redirect(w, r, nav.replaced, http.StatusSeeOther)
		case authkit.RenderFault:
			s.logger.Error("session unavailable", "error", s.store.Err())
			alert := authkit.NormalizeError(s.store.Err())
			s.render(w, http.StatusServiceUnavailable, "fault", &pageData{Routes: s.routes, Alert: &alert})
		default:
			data := s.pageData(r)
			if page == "home" {
				data.Ping = s.ping(r.Context())
				data.Service = s.serviceStatus(r.Context())
			}
			s.render(w, http.StatusOK, page, data)
		}
	}
}

func (s *Shell) pageData(r *http.Request) *pageData {
	ctx := r.Context()
	data := &pageData{
		Routes: s.routes,
		Errors: make(map[string]string),
		Email:  s.Session.PopString(ctx, flashEmail),
		SignUp: r.URL.Query().Get("mode") == "signup",
		User:   s.store.User(),
		Google: s.google,
		Apple:  s.apple,
	}
	if title := s.Session.PopString(ctx, flashAlertTitle); title != "" {
		data.Alert = &authkit.NormalizedError{Title: title, Message: s.Session.PopString(ctx, flashAlertMessage)}
	}
	for _, field := range []string{authkit.FieldEmail, authkit.FieldPassword, authkit.FieldConfirmation} {
		if msg := s.Session.PopString(ctx, flashErrorPrefix+field); msg != "" {
			data.Errors[field] = msg
		}
	}
	return data
}

// ping calls the API as the signed-in user and describes the outcome.
func (s *Shell) ping(ctx context.Context) string {
	if s.apiURL == "" || s.apiClient == nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/ping", nil)
	if err != nil {
		return "API unreachable"
	}
	resp, err := s.apiClient.Do(req)
	if err != nil {
		s.logger.Warn("api ping failed", "error", err)
		return "API unreachable"
	}
	defer resp.Body.Close()
	return "API: " + resp.Status
}

// serviceStatus checks the backend service as the signed-in user.
func (s *Shell) serviceStatus(ctx context.Context) string {
	if s.health == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		s.logger.Warn("service health check failed", "error", err)
		return "Service: " + status.Code(err).String()
	}
	return "Service: " + resp.GetStatus().String()
}

func (s *Shell) render(w http.ResponseWriter, status int, page string, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, page, data); err != nil {
		s.logger.Error("render failed", "page", page, "error", err)
	}
}

func (s *Shell) submitEmail(w http.ResponseWriter, r *http.Request) {
	if s.signedIn(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	req := authkit.EmailPassword{
		Email:        r.PostForm.Get("email"),
		Password:     r.PostForm.Get("password"),
		Confirmation: r.PostForm.Get("confirmation"),
		Mode:         authkit.ModeSignIn,
	}
	back := s.routes.AuthEntry + "/email"
	if r.PostForm.Get("mode") == "signup" {
		req.Mode = authkit.ModeSignUp
		back += "?mode=signup"
	}

	if err := s.submitter.Submit(r.Context(), req); err != nil {
		s.Session.Put(r.Context(), flashEmail, req.Email)
		s.flashError(r.Context(), err)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	s.awaitSession(r.Context(), true)
	http.Redirect(w, r, s.routes.AppEntry, http.StatusSeeOther)
}

func (s *Shell) submitOAuth(signIn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.signedIn(w, r) {
			return
		}
		if err := signIn(r.Context()); err != nil {
			s.flashError(r.Context(), err)
			http.Redirect(w, r, s.routes.AuthEntry, http.StatusSeeOther)
			return
		}
		s.awaitSession(r.Context(), true)
		http.Redirect(w, r, s.routes.AppEntry, http.StatusSeeOther)
	}
}

// signedIn sends a signed-in user back to the app zone instead of signing in again.
func (s *Shell) signedIn(w http.ResponseWriter, r *http.Request) bool {
	if !s.store.Current().Authenticated() {
		return false
	}
	http.Redirect(w, r, s.routes.AppEntry, http.StatusSeeOther)
	return true
}

func (s *Shell) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.submitter.SignOut(r.Context()); err != nil {
		s.flashError(r.Context(), err)
		http.Redirect(w, r, s.routes.AppEntry, http.StatusSeeOther)
		return
	}
	s.awaitSession(r.Context(), false)
	http.Redirect(w, r, s.routes.AuthEntry, http.StatusSeeOther)
}

// flashError stores what the next page should show for err. Cancellation shows nothing.
func (s *Shell) flashError(ctx context.Context, err error) {
	if errors.Is(err, authkit.ErrCancelled) {
		return
	}
	var fe authkit.FieldErrors
	if errors.As(err, &fe) {
		for _, f := range fe {
			s.Session.Put(ctx, flashErrorPrefix+f.Field, f.Message())
		}
		return
	}
	alert := authkit.NormalizeError(err)
	s.Session.Put(ctx, flashAlertTitle, alert.Title)
	s.Session.Put(ctx, flashAlertMessage, alert.Message)
}

// awaitSession waits until the store reports the expected sign-in state, so the
// redirect that follows is not bounced by a stale session.
func (s *Shell) awaitSession(ctx context.Context, authenticated bool) {
	settled := func(sess authkit.Session) bool {
		return !sess.IsResolving && sess.Authenticated() == authenticated
	}
	if settled(s.store.Current()) {
		return
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := s.store.Subscribe(func(sess authkit.Session) {
		if settled(sess) {
			once.Do(func() { close(done) })
		}
	})
	defer cancel()
	if settled(s.store.Current()) {
		return
	}

	ctx, stop := context.WithTimeout(ctx, s.settle)
	defer stop()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("session did not settle before redirect", "authenticated", authenticated)
	}
}
