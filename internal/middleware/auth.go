package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/httputil"
	"github.com/alexedwards/scs/v2"
)

type ContextKey string

const OrganizerKey ContextKey = "organizer"

// Session key holding the organizer's display name.
const sessionOrganizer = "organizer"

// SystemActor is recorded on history written without a signed-in organizer,
// such as byes settled during generation.
const SystemActor = "system"

// LoadOrganizer copies the session's organizer name into the request context.
func LoadOrganizer(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := sessionManager.GetString(r.Context(), sessionOrganizer)
			if name == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOrganizer(r.Context(), name)))
		})
	}
}

// RequireOrganizer rejects requests that have no organizer session.
func RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetOrganizerFromContext(r.Context()); !ok {
			httputil.Unauthorized(w, "Start a session with POST /session first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartSession stores the organizer name, renewing the token first.
func StartSession(ctx context.Context, sessionManager *scs.SessionManager, name string) error {
	if err := sessionManager.RenewToken(ctx); err != nil {
		return err
	}
	sessionManager.Put(ctx, sessionOrganizer, strings.TrimSpace(name))
	return nil
}

func WithOrganizer(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, OrganizerKey, name)
}

func GetOrganizerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(OrganizerKey).(string)
	return name, ok && name != ""
}

// Actor names whoever is changing data, for history records.
func Actor(ctx context.Context) string {
	if name, ok := GetOrganizerFromContext(ctx); ok {
		return name
	}
	return SystemActor
}
