// Package authkit keeps an app's navigation and sign-in screens consistent with
// the session held by an external identity backend (Firebase Authentication).
//
// authkit never verifies credentials or issues tokens. It subscribes to the
// backend's auth state, decides which part of the app may be shown, submits
// credentials and turns backend failures into messages a user can read.
//
// # Architecture
//
// SessionStore: mirrors the backend's "current user" stream. It starts in a
// resolving state and settles on the first emission. Observers are notified
// after every change.
//
// RouteGuard: partitions locations into an auth zone and an app zone (see Routes)
// and replaces the current location whenever it disagrees with the session.
// While the session is resolving it renders a placeholder and never redirects.
//
// Submitter: validates email/password input locally, then calls the
// IdentityProvider. Google and Apple sign-in run a NativePrompt first; Apple
// uses a fresh nonce whose SHA-256 hash goes to the prompt and whose raw value
// goes to the backend.
//
// Normalize: maps backend error codes to a title and message.
//
// # Basic Usage
//
//	provider, _ := firebase.New(ctx, firebase.Config{APIKey: key, ProjectID: project}, credStore)
//
//	store := authkit.NewSessionStore(provider)
//	if err := store.Start(); err != nil {
//	    return err
//	}
//	defer store.Stop()
//
//	guard := authkit.NewRouteGuard(store, navigator, authkit.DefaultRoutes())
//	detach := guard.Attach()
//	defer detach()
//
//	submitter := authkit.NewSubmitter(provider, authkit.WithApplePrompt(applePrompt))
//	err := submitter.Submit(ctx, authkit.EmailPassword{Email: email, Password: pw})
//	var fields authkit.FieldErrors
//	switch {
//	case errors.As(err, &fields):
//	    // show inline field messages
//	case err != nil:
//	    alert := authkit.NormalizeError(err)
//	    // show alert.Title / alert.Message
//	}
//
// A successful submission does not navigate. The backend's state change flows
// through the SessionStore and the RouteGuard moves the user to the app zone.
//
// # Packages
//
// firebase adapts the Identity Toolkit REST API. client holds the persisted
// session and its stores (file, GORM, Datastore). oauth2 provides Google and
// Apple prompts. grpc attaches the session to outgoing calls. web serves the
// screens over HTTP.
package authkit
