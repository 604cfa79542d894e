package authkit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes_ZoneOf(t *testing.T) {
	r := DefaultRoutes()
	tests := []struct {
		location string
		want     Zone
	}{
		{"/(auth)", ZoneAuth},
		{"/(auth)/email", ZoneAuth},
		{"(auth)/email?mode=signup", ZoneAuth},
		{"/(tabs)", ZoneApp},
		{"/(tabs)/profile", ZoneApp},
		{"/", ZoneApp},
		{"", ZoneApp},
		{"/settings/(auth)", ZoneApp},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ZoneOf(tt.location))
		})
	}
}

func newGuardFixture(t *testing.T, location string) (*fakeSource, *SessionStore, *fakeNavigator, *RouteGuard) {
	t.Helper()
	src := &fakeSource{}
	store := NewSessionStore(src)
	require.NoError(t, store.Start())
	t.Cleanup(store.Stop)
	nav := &fakeNavigator{location: location}
	return src, store, nav, NewRouteGuard(store, nav, Routes{})
}

func TestRouteGuard_NoRedirectWhileResolving(t *testing.T) {
	for _, loc := range []string{"/(auth)", "/(auth)/email", "/(tabs)", "/"} {
		_, _, nav, guard := newGuardFixture(t, loc)
		assert.Equal(t, RenderPlaceholder, guard.Evaluate(), loc)
		assert.Empty(t, nav.replaces, loc)
		assert.False(t, guard.CanShow(ZoneApp))
		assert.False(t, guard.CanShow(ZoneAuth))
	}
}

func TestRouteGuard_SignedOutInAppZone(t *testing.T) {
	src, _, nav, guard := newGuardFixture(t, "/(tabs)")
	src.emit(nil)

	assert.Equal(t, RedirectToAuth, guard.Evaluate())
	assert.Equal(t, []string{"/(auth)"}, nav.replaces)

	// consistent now
	assert.Equal(t, RenderContent, guard.LocationChanged())
	assert.Len(t, nav.replaces, 1)
	assert.False(t, guard.CanShow(ZoneApp))
	assert.True(t, guard.CanShow(ZoneAuth))
}

func TestRouteGuard_SignedInInAuthZone(t *testing.T) {
	src, _, nav, guard := newGuardFixture(t, "/(auth)/email")
	src.emit(&User{ID: "u1"})

	assert.Equal(t, RedirectToApp, guard.Evaluate())
	assert.Equal(t, []string{"/(tabs)"}, nav.replaces)
	assert.True(t, guard.CanShow(ZoneApp))
	assert.False(t, guard.CanShow(ZoneAuth))
}

func TestRouteGuard_ConsistentStates(t *testing.T) {
	src, _, nav, guard := newGuardFixture(t, "/(auth)")
	src.emit(nil)
	assert.Equal(t, RenderContent, guard.Evaluate())

	nav.location = "/(tabs)/chat"
	src.emit(&User{ID: "u1"})
	assert.Equal(t, RenderContent, guard.Evaluate())
	assert.Empty(t, nav.replaces)
}

func TestRouteGuard_AttachFollowsSession(t *testing.T) {
	src, _, nav, guard := newGuardFixture(t, "/(auth)")
	detach := guard.Attach()

	assert.Empty(t, nav.replaces, "resolving")

	src.emit(&User{ID: "u1"})
	assert.Equal(t, []string{"/(tabs)"}, nav.replaces)

	src.emit(nil)
	assert.Equal(t, []string{"/(tabs)", "/(auth)"}, nav.replaces)

	detach()
	src.emit(&User{ID: "u2"})
	assert.Len(t, nav.replaces, 2)
}

func TestRouteGuard_FaultHaltsRedirects(t *testing.T) {
	src, _, nav, guard := newGuardFixture(t, "/(tabs)")
	src.emit(&User{ID: "u1"})
	guard.Attach()

	src.fail(errors.New("listener down"))
	nav.location = "/(auth)"

	assert.Equal(t, RenderFault, guard.Evaluate())
	assert.Empty(t, nav.replaces)
	assert.False(t, guard.CanShow(ZoneApp))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		zone    Zone
		fault   error
		want    Decision
	}{
		{"resolving app", Session{IsResolving: true}, ZoneApp, nil, RenderPlaceholder},
		{"resolving auth with stale user", Session{UserID: "u", IsResolving: true}, ZoneAuth, nil, RenderPlaceholder},
		{"out app", Session{}, ZoneApp, nil, RedirectToAuth},
		{"out auth", Session{}, ZoneAuth, nil, RenderContent},
		{"in app", Session{UserID: "u"}, ZoneApp, nil, RenderContent},
		{"in auth", Session{UserID: "u"}, ZoneAuth, nil, RedirectToApp},
		{"fault", Session{}, ZoneApp, errors.New("x"), RenderFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.session, tt.zone, tt.fault))
		})
	}
}
