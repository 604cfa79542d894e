// Package grpc attaches the signed-in user's identity to outgoing gRPC calls and
// reads it back on the receiving side.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys.
const (
	// DefaultMetadataKeyUserID carries the signed-in user's ID
	DefaultMetadataKeyUserID = "x-user-id"

	// DefaultMetadataKeyAuthorization carries "Bearer <id token>"
	DefaultMetadataKeyAuthorization = "authorization"

	bearerPrefix = "Bearer "
)

// Config holds the metadata key configuration.
type Config struct {
	// MetadataKeyUserID defaults to "x-user-id".
	MetadataKeyUserID string

	// MetadataKeyAuthorization defaults to "authorization".
	MetadataKeyAuthorization string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

// UserIDToOutgoingContext adds the user ID to outgoing metadata.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// BearerToOutgoingContext adds "authorization: Bearer <idToken>" to outgoing metadata.
func BearerToOutgoingContext(ctx context.Context, idToken string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, bearerPrefix+idToken)
}

// UserIDFromContext returns the user ID a caller attached, or "".
func UserIDFromContext(ctx context.Context) string {
	return UserIDFromContextWithConfig(ctx, nil)
}

// UserIDFromContextWithConfig is UserIDFromContext with custom keys.
func UserIDFromContextWithConfig(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()
	return firstValue(ctx, config.MetadataKeyUserID)
}

// BearerFromContext returns the bearer token a caller attached, or "".
func BearerFromContext(ctx context.Context) string {
	v := firstValue(ctx, DefaultMetadataKeyAuthorization)
	if !strings.HasPrefix(v, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(v, bearerPrefix)
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
