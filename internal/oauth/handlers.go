package oauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/union"
)

const nonceCookieName = "johap_oauth_nonce"

// Handler serves /auth/{provider}/start and /auth/{provider}/callback.
type Handler struct {
	providers map[string]*Provider
	signer    *StateSigner
	unions    *union.Repository
	users     *auth.AuthUserStore
	sessions  *auth.SessionStore
	baseURL   string
	secure    bool
	client    *http.Client
}

// NewHandler creates the OAuth handlers.
func NewHandler(providers map[string]*Provider, signer *StateSigner, unions *union.Repository,
	users *auth.AuthUserStore, sessions *auth.SessionStore, baseURL string) *Handler {
	return &Handler{
		providers: providers,
		signer:    signer,
		unions:    unions,
		users:     users,
		sessions:  sessions,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secure:    strings.HasPrefix(baseURL, "https://"),
		client:    defaultClient,
	}
}

func (h *Handler) redirectURI(provider string) string {
	return h.baseURL + "/auth/" + provider + "/callback"
}

// Start redirects to the provider's consent screen.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := h.providers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}
	if _, err := h.unions.GetBySlug(slug); errors.Is(err, union.ErrNotFound) {
		writeError(w, http.StatusNotFound, "union not found")
		return
	} else if err != nil {
		slog.Error("loading union", "slug", slug, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	next := r.URL.Query().Get("next")
	if !SafeNext(next) {
		next = ""
	}

	state, nonce, err := h.signer.Sign(name, slug, next)
	if err != nil {
		slog.Error("signing oauth state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	target, err := p.AuthCodeURL(h.redirectURI(name), state)
	if err != nil {
		slog.Error("building auth url", "provider", name, "err", err)
		writeError(w, http.StatusInternalServerError, "invalid provider config")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    nonce,
		Path:     "/auth/",
		Expires:  time.Now().Add(stateTTL),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback finishes the login: verifies state, exchanges the code, upserts
// the identity, creates a session and redirects into the union.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := h.providers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "provider error: "+e)
		return
	}
	code, rawState := q.Get("code"), q.Get("state")
	if code == "" || rawState == "" {
		writeError(w, http.StatusBadRequest, "missing code or state")
		return
	}

	claims, err := h.signer.Verify(rawState, name)
	if err != nil {
		slog.Warn("oauth state rejected", "provider", name, "err", err)
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	cookie, err := r.Cookie(nonceCookieName)
	if err != nil || cookie.Value != claims.Nonce {
		slog.Warn("oauth nonce mismatch", "provider", name)
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	h.clearNonce(w)

	accessToken, err := p.Exchange(r.Context(), h.client, code, h.redirectURI(name), rawState)
	if err != nil {
		slog.Error("oauth exchange", "provider", name, "err", err)
		writeError(w, http.StatusBadGateway, "failed to exchange provider token")
		return
	}

	profile, err := p.FetchProfile(r.Context(), h.client, accessToken)
	if err != nil {
		slog.Error("oauth profile", "provider", name, "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch provider profile")
		return
	}

	user, err := h.users.Upsert(r.Context(), name, profile.ProviderUserID, profile.Email, profile.Name)
	if err != nil {
		slog.Error("upserting identity", "provider", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.sessions.Create(w, user.ID); err != nil {
		slog.Error("creating session", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("login success", "auth_user_id", user.ID, "method", name, "union", claims.Slug)

	target := "/" + claims.Slug
	if SafeNext(claims.Next) {
		target = claims.Next
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) clearNonce(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     "/auth/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeNext reports whether next is a local path: it starts with "/" and is
// neither protocol-relative ("//host") nor a backslash trick ("/\host").
func SafeNext(next string) bool {
	if next == "" || next[0] != '/' {
		return false
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(next, "\r\n")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}
