package kit

import "context"

type contextKey string

const (
	// TransportKey records which surface a request arrived on: "http", "mcp".
	TransportKey contextKey = "kit_transport"
	// RequestIDKey carries the per-request identifier.
	RequestIDKey contextKey = "kit_request_id"
	// SiteKey carries the site identity a settings request targets.
	SiteKey contextKey = "kit_site"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

func GetTransport(ctx context.Context) string {
	v, _ := ctx.Value(TransportKey).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, SiteKey, site)
}

func GetSite(ctx context.Context) string {
	v, _ := ctx.Value(SiteKey).(string)
	return v
}
