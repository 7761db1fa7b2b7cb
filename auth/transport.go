package auth

import "net/http"

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth is HTTP middleware that authenticates each request and attaches
// the identity to its context. Rejected requests go to deny; a nil deny
// replies 401.
//
// Usage:
//
//	mux.Handle("/api/", auth.RequireAuth(authn, nil)(apiHandler))
func RequireAuth(authn Authenticator, deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("WWW-Authenticate", BearerScheme)
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := authn.Authenticate(r.Context(), &AuthRequest{Headers: r.Header})
			if err != nil {
				http.Error(w, "auth: internal error", http.StatusInternalServerError)
				return
			}
			if !result.Authenticated {
				deny(w, r, result.Error)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), result.Identity)))
		})
	}
}
