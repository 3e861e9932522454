package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/evcraddock/johap/internal/logging"
	"github.com/evcraddock/johap/internal/member"
)

// rateLimiter tracks failed API key attempts per IP.
type rateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{attempts: make(map[string][]time.Time), now: time.Now}
}

var apiKeyLimiter = newRateLimiter()

const (
	rateLimitWindow  = 1 * time.Minute
	rateLimitMaxFail = 10
)

// prune drops attempts outside the window. Caller holds mu.
func (rl *rateLimiter) prune(ip string) []time.Time {
	cutoff := rl.now().Add(-rateLimitWindow)
	valid := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = valid
	return valid
}

// limited reports whether ip has used up its failures for the window.
func (rl *rateLimiter) limited(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(ip)) >= rateLimitMaxFail
}

// recordFailure records a failed attempt.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.attempts[ip] = append(rl.prune(ip), rl.now())
}

// authenticate wraps Resolver.Authenticate with the per-IP failure limit.
// It writes the error response itself and returns ok=false when it did.
func authenticate(rv *Resolver, w http.ResponseWriter, r *http.Request) (string, bool) {
	ip := r.RemoteAddr
	if apiKeyLimiter.limited(ip) {
		writeError(w, http.StatusTooManyRequests, Decision{Reason: "too many requests"})
		return "", false
	}

	id, err := rv.Authenticate(r)
	if errors.Is(err, ErrInvalidAPIKey) {
		apiKeyLimiter.recordFailure(ip)
		writeError(w, http.StatusUnauthorized, Decision{Reason: "invalid API key"})
		return "", false
	}
	if err != nil {
		slog.Error("authenticating request", "err", err)
		writeError(w, http.StatusInternalServerError, Decision{Reason: "internal error"})
		return "", false
	}
	return id, true
}

// Gate is middleware for /api/unions/{slug}/... routes. It resolves the
// request against the union in the path, applies Decide for the route, and
// stores the resolution in the request context.
func Gate(rv *Resolver, route Route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		logging.SetUnion(r.Context(), slug)

		ip := r.RemoteAddr
		if apiKeyLimiter.limited(ip) {
			writeError(w, http.StatusTooManyRequests, Decision{Reason: "too many requests"})
			return
		}

		res, err := rv.Resolve(w, r, slug)
		if err != nil {
			status := StatusForError(err)
			if errors.Is(err, ErrInvalidAPIKey) {
				apiKeyLimiter.recordFailure(ip)
			}
			if status == http.StatusInternalServerError {
				slog.Error("resolving union access", "slug", slug, "err", err)
				writeError(w, status, Decision{Reason: "internal error"})
				return
			}
			writeError(w, status, Decision{Reason: err.Error()})
			return
		}

		d := Decide(route, res)
		if !d.Allow {
			writeError(w, d.Status, d)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))
	})
}

// RequireAuth is middleware that requires a session or API key. The
// resolution it stores has no union.
func RequireAuth(rv *Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := authenticate(rv, w, r)
		if !ok {
			return
		}
		if id == "" {
			writeError(w, http.StatusUnauthorized, Decision{Reason: "login required"})
			return
		}
		res := &Resolution{AuthUserID: id, Access: AccessUnregistered}
		next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))
	})
}

// RequireSystemAdmin is middleware for /api/system/... routes.
// Returns 401 when unauthenticated and 403 for anyone but a system admin.
func RequireSystemAdmin(rv *Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := authenticate(rv, w, r)
		if !ok {
			return
		}
		if id == "" {
			writeError(w, http.StatusUnauthorized, Decision{Reason: "login required"})
			return
		}

		admin, err := rv.SystemAdmin(id)
		if errors.Is(err, member.ErrNotFound) {
			writeError(w, http.StatusForbidden, Decision{Reason: "system admin access required"})
			return
		}
		if err != nil {
			slog.Error("loading system admin", "err", err)
			writeError(w, http.StatusInternalServerError, Decision{Reason: "internal error"})
			return
		}

		res := &Resolution{AuthUserID: id, Profile: admin, Access: AccessSystemAdmin}
		next.ServeHTTP(w, r.WithContext(WithResolution(r.Context(), res)))
	})
}

func writeError(w http.ResponseWriter, status int, d Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(d); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}
