package middlewares

import (
	"context"
	"time"
)

type ctxKey string

const (
	// ctxIdentityKey guarda la identidad resuelta por RequireSession
	ctxIdentityKey ctxKey = "identity"
	// ctxUserIDKey guarda el user ID de la sesión
	ctxUserIDKey ctxKey = "user_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
	// ctxClientIPKey guarda la IP resuelta por WithClientIP
	ctxClientIPKey ctxKey = "client_ip"
)

// Identity es lo que los handlers protegidos ven del usuario autenticado.
type Identity struct {
	UserID           string
	SessionExpiresAt time.Time
}

// WithIdentity inyecta la identidad en el contexto
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// WithUserID inyecta el user ID en el contexto
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetIdentity obtiene la identidad. ok=false si RequireSession no se aplicó.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(Identity)
	return id, ok
}

// GetUserID obtiene el user ID del contexto, o "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto, o "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

func setClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxClientIPKey, ip)
}

func getClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(ctxClientIPKey).(string); ok {
		return v
	}
	return ""
}
