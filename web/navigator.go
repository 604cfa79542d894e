package web

import "net/http"

// requestNavigator is the authkit.Navigator for a single HTTP request. A
// replacement becomes a 303 redirect, so the rejected page never enters the
// browser history.
type requestNavigator struct {
	location string
	replaced string
}

func newRequestNavigator(r *http.Request) *requestNavigator {
	return &requestNavigator{location: r.URL.Path}
}

func (n *requestNavigator) CurrentLocation() string { return n.location }

func (n *requestNavigator) Replace(path string) {
	n.replaced = path
	n.location = path
}
