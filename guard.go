package authkit

import (
	"log/slog"
	"strings"
)

// Zone is one of the two navigation partitions of the app.
type Zone int

const (
	// ZoneApp holds screens that require a signed-in user.
	ZoneApp Zone = iota
	// ZoneAuth holds the sign-in and sign-up screens.
	ZoneAuth
)

func (z Zone) String() string {
	if z == ZoneAuth {
		return "auth"
	}
	return "app"
}

// Routes describes how locations map onto zones and where each zone starts.
type Routes struct {
	// AuthGroup is the first path segment of every auth zone location.
	AuthGroup string
	// AuthEntry is where signed-out users are sent.
	AuthEntry string
	// AppEntry is where signed-in users are sent.
	AppEntry string
}

// DefaultRoutes returns the app's route groups.
func DefaultRoutes() Routes {
	return Routes{
		AuthGroup: "(auth)",
		AuthEntry: "/(auth)",
		AppEntry:  "/(tabs)",
	}
}

// EnsureDefaults fills in unset fields from DefaultRoutes.
func (r *Routes) EnsureDefaults() {
	d := DefaultRoutes()
	if r.AuthGroup == "" {
		r.AuthGroup = d.AuthGroup
	}
	if r.AuthEntry == "" {
		r.AuthEntry = d.AuthEntry
	}
	if r.AppEntry == "" {
		r.AppEntry = d.AppEntry
	}
}

// ZoneOf classifies a location by its first path segment. Everything outside the
// auth group belongs to the app zone.
func (r Routes) ZoneOf(location string) Zone {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(location, "/"), "/")
	if first == r.AuthGroup {
		return ZoneAuth
	}
	return ZoneApp
}

// Navigator is the UI layer's router.
type Navigator interface {
	CurrentLocation() string
	// Replace navigates to path without leaving a back entry.
	Replace(path string)
}

// Decision is what the guard decided for the current session and location.
type Decision int

const (
	// RenderPlaceholder: the session is still resolving; show a blocking loader.
	RenderPlaceholder Decision = iota
	// RenderContent: location and session agree.
	RenderContent
	// RedirectToAuth: signed out inside the app zone.
	RedirectToAuth
	// RedirectToApp: signed in inside the auth zone.
	RedirectToApp
	// RenderFault: session tracking failed; no redirects are made.
	RenderFault
)

func (d Decision) String() string {
	switch d {
	case RenderPlaceholder:
		return "placeholder"
	case RenderContent:
		return "content"
	case RedirectToAuth:
		return "redirect_auth"
	case RedirectToApp:
		return "redirect_app"
	case RenderFault:
		return "fault"
	}
	return "unknown"
}

// PlaceholderText is shown while the session is resolving.
const PlaceholderText = "Loading..."

// Decide is the guard's pure decision function.
func Decide(session Session, zone Zone, fault error) Decision {
	if fault != nil {
		return RenderFault
	}
	if session.IsResolving {
		return RenderPlaceholder
	}
	switch {
	case session.UserID == "" && zone == ZoneApp:
		return RedirectToAuth
	case session.UserID != "" && zone == ZoneAuth:
		return RedirectToApp
	}
	return RenderContent
}

// GuardOption configures a RouteGuard
type GuardOption func(*RouteGuard)

// WithGuardLogger sets the logger used for redirects.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// RouteGuard keeps the navigator's location consistent with the session.
type RouteGuard struct {
	store  *SessionStore
	nav    Navigator
	routes Routes
	logger *slog.Logger
}

// NewRouteGuard creates a guard over store and nav. Zero fields in routes take
// their defaults.
func NewRouteGuard(store *SessionStore, nav Navigator, routes Routes, opts ...GuardOption) *RouteGuard {
	routes.EnsureDefaults()
	g := &RouteGuard{
		store:  store,
		nav:    nav,
		routes: routes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Routes returns the guard's route configuration.
func (g *RouteGuard) Routes() Routes {
	return g.routes
}

// Evaluate reads the session and location, and replaces the location when they
// disagree. It returns the decision taken.
func (g *RouteGuard) Evaluate() Decision {
	location := g.nav.CurrentLocation()
	d := Decide(g.store.Current(), g.routes.ZoneOf(location), g.store.Err())
	switch d {
	case RedirectToAuth:
		g.logger.Info("redirecting to auth zone", "from", location, "to", g.routes.AuthEntry)
		g.nav.Replace(g.routes.AuthEntry)
	case RedirectToApp:
		g.logger.Info("redirecting to app zone", "from", location, "to", g.routes.AppEntry)
		g.nav.Replace(g.routes.AppEntry)
	}
	return d
}

// LocationChanged re-runs the check after the navigator moved.
func (g *RouteGuard) LocationChanged() Decision {
	return g.Evaluate()
}

// Attach evaluates once and then on every session change until the returned
// function is called.
func (g *RouteGuard) Attach() (detach func()) {
	cancel := g.store.Subscribe(func(Session) { g.Evaluate() })
	g.Evaluate()
	return cancel
}

// CanShow reports whether content of zone may be displayed right now. App zone
// content is never visible while signed out, and auth zone content is never visible
// once a signed-in session has resolved.
func (g *RouteGuard) CanShow(zone Zone) bool {
	return Decide(g.store.Current(), zone, g.store.Err()) == RenderContent
}
