package auth

import (
	"context"
	"net/http"

	"github.com/kz-league/cs2kz-api/internal/perm"
	"github.com/kz-league/cs2kz-api/internal/problem"
)

type ctxKey string

const userKey ctxKey = "cs2kz_user"

// NewContext stores the authenticated User in the context.
func NewContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext extracts the authenticated User. ok is false if the request
// reached this point without passing through Middleware successfully.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// Middleware authenticates the caller via the session cookie and stores the
// resulting User in the request context. It does not itself reject
// unauthenticated requests — RequireAuth and RequirePermissions do that, so
// that routes can distinguish "anonymous" from "authenticated but
// under-permissioned" where useful.
func Middleware(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sm.Authenticate(r.Context(), w, r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), user)))
		})
	}
}

// RequireAuth rejects requests with no authenticated user. It implements the
// "Noop" authorization strategy: logged in is sufficient, no specific
// permission bit is required.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			d := problem.New(problem.Unauthorized, "authentication required")
			d.Status = http.StatusUnauthorized
			problem.Write(w, nil, d)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermissions rejects requests whose authenticated user does not hold
// every bit in required. A request with no authenticated user gets a 401; a
// user missing bits gets a 403 whose body surfaces both required and actual
// permissions as extension members. Those members are included in every
// deployment; production and non-production are not distinguished.
func RequirePermissions(required perm.Permissions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := FromContext(r.Context())
			if !ok {
				d := problem.New(problem.Unauthorized, "authentication required")
				d.Status = http.StatusUnauthorized
				problem.Write(w, nil, d)
				return
			}

			if !user.Permissions.Contains(required) {
				problem.Write(w, nil, problem.New(problem.Unauthorized, "insufficient permissions").
					WithExtensions(map[string]any{
						"required_permissions": required,
						"actual_permissions":   user.Permissions,
					}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
