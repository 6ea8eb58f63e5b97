package context

import "context"

type ContextKey string

var (
	RequestIDKey  = ContextKey("X-Request-Id")
	MethodKey     = ContextKey("X-Method")
	RouteKey      = ContextKey("X-Route")
	RemoteIPKey   = ContextKey("X-Remote-Ip")
	UserIDKey     = ContextKey("X-User-Id")
	SessionIDKey  = ContextKey("X-Session-Id")
	BusinessIDKey = ContextKey("X-Business-Id")
)

func set(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return set(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return get(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return get(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return set(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return get(ctx, RemoteIPKey)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return set(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return get(ctx, UserIDKey)
}

// SetSessionID tags the context with the onboarding session being advanced.
func SetSessionID(ctx context.Context, sessionID string) context.Context {
	return set(ctx, SessionIDKey, sessionID)
}

func GetSessionID(ctx context.Context) string {
	return get(ctx, SessionIDKey)
}

// SetBusinessID tags the context with the resolved business.
func SetBusinessID(ctx context.Context, businessID string) context.Context {
	return set(ctx, BusinessIDKey, businessID)
}

func GetBusinessID(ctx context.Context) string {
	return get(ctx, BusinessIDKey)
}

// LogFields returns the request-scoped values that are set, keyed for
// structured logging.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for key, name := range map[ContextKey]string{
		RequestIDKey:  "request_id",
		UserIDKey:     "user_id",
		SessionIDKey:  "session_id",
		BusinessIDKey: "business_id",
	} {
		if v := get(ctx, key); v != "" {
			fields[name] = v
		}
	}
	return fields
}
