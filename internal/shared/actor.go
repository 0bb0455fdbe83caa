package shared

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/facturia/facturia/internal/authz"
)

// ActorLookup resolves a user id to the identity the authorization engine
// needs. Implementations return ErrNotFound for unknown or inactive users.
type ActorLookup interface {
	LookupActor(ctx context.Context, id int64) (authz.Actor, error)
}

// RequestMeta carries request details recorded alongside audit events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// RequestMetaFrom extracts the client address and agent. Forwarding headers
// only count when the router installs RealIP for a trusted proxy.
func RequestMetaFrom(r *http.Request) RequestMeta {
	return RequestMeta{IPAddress: clientIP(r.RemoteAddr), UserAgent: r.UserAgent()}
}

func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ResolveActor loads the actor behind the session on every request so role
// changes apply immediately. Requests without a valid user stay anonymous.
func ResolveActor(lookup ActorLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := SessionFromContext(r.Context()).ActorID()
			if id == 0 || lookup == nil {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := lookup.LookupActor(r.Context(), id)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logger.Error("resolve actor", slog.Int64("user_id", id), slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), &actor)))
		})
	}
}
