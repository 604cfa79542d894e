package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pinged/authkit"
	"github.com/pinged/authkit/client"
)

// SessionSource is read for the current session on every call. *authkit.SessionStore
// satisfies it.
type SessionSource interface {
	Current() authkit.Session
}

// InterceptorConfig configures the client interceptors.
type InterceptorConfig struct {
	*Config

	Session SessionSource

	// Tokens supplies the ID token sent as a bearer credential. Optional.
	Tokens client.TokenSource

	// PublicMethods are sent without credentials even when signed out.
	// Keys are full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig creates a config reading session and tokens from the given sources.
func NewInterceptorConfig(session SessionSource, tokens client.TokenSource, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		Session:       session,
		Tokens:        tokens,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// UnaryClientInterceptor attaches credentials to unary calls. Calls made while
// signed out (or before the session resolved) fail with codes.Unauthenticated
// without reaching the server.
func UnaryClientInterceptor(config *InterceptorConfig) grpc.UnaryClientInterceptor {
	config.ensureDefaults()
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, err := config.authorize(ctx, method)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is UnaryClientInterceptor for streams.
func StreamClientInterceptor(config *InterceptorConfig) grpc.StreamClientInterceptor {
	config.ensureDefaults()
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, err := config.authorize(ctx, method)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// DialOptions returns both interceptors as dial options.
func DialOptions(config *InterceptorConfig) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(config)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(config)),
	}
}

// NewClient creates a client connection to target whose calls carry the session.
// opts must include transport credentials.
func NewClient(target string, config *InterceptorConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append(opts, DialOptions(config)...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return conn, nil
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

func (c *InterceptorConfig) authorize(ctx context.Context, method string) (context.Context, error) {
	if c.PublicMethods[method] {
		return ctx, nil
	}
	if c.Session == nil {
		return nil, status.Error(codes.Unauthenticated, "no session configured")
	}
	session := c.Session.Current()
	if session.IsResolving {
		return nil, status.Error(codes.Unauthenticated, "session is still resolving")
	}
	if !session.Authenticated() {
		return nil, status.Error(codes.Unauthenticated, "sign-in required")
	}

	kv := []string{c.MetadataKeyUserID, session.UserID}
	if c.Tokens != nil {
		token, err := c.Tokens.IDToken(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "no id token: %v", err)
		}
		kv = append(kv, c.MetadataKeyAuthorization, bearerPrefix+token)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...), nil
}
