package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/johap/internal/auth"
)

// passkeyHandlers holds WebAuthn-related HTTP handlers.
type passkeyHandlers struct {
	wan      *webauthn.WebAuthn
	passkeys *auth.PasskeyStore
	sessions *auth.SessionStore
	users    *auth.AuthUserStore

	// In-memory session data for in-flight WebAuthn ceremonies.
	// regSessions is keyed by auth user ID for registration.
	// loginSessionData holds a single login ceremony; only one concurrent
	// passkey login is supported.
	mu               sync.Mutex
	regSessions      map[string]*webauthn.SessionData
	loginSessionData *webauthn.SessionData
}

func newPasskeyHandlers(cfg auth.Config, passkeys *auth.PasskeyStore, sessions *auth.SessionStore, users *auth.AuthUserStore) (*passkeyHandlers, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "조합 관리",
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}

	return &passkeyHandlers{
		wan:         wan,
		passkeys:    passkeys,
		sessions:    sessions,
		users:       users,
		regSessions: make(map[string]*webauthn.SessionData),
	}, nil
}

// passkeyUser loads the auth user with their stored credentials.
func (h *passkeyHandlers) passkeyUser(authUserID string) (*auth.PasskeyUser, []webauthn.Credential, error) {
	u, err := h.users.Get(authUserID)
	if err != nil {
		return nil, nil, err
	}
	creds, err := h.passkeys.WebAuthnCredentials(authUserID)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewPasskeyUser(u, creds), creds, nil
}

// handleBeginRegistration starts passkey registration for the logged-in user.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	authUserID := resolution(r).AuthUserID

	user, creds, err := h.passkeyUser(authUserID)
	if err != nil {
		internalError(w, "loading passkey user", err)
		return
	}

	// Exclude existing credentials so the same key is not registered twice.
	excludeList := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		excludeList[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		internalError(w, "beginning registration", err)
		return
	}

	h.mu.Lock()
	h.regSessions[authUserID] = session
	h.mu.Unlock()

	apiJSON(w, creation, http.StatusOK)
}

// handleFinishRegistration completes passkey registration.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	authUserID := resolution(r).AuthUserID

	h.mu.Lock()
	session, ok := h.regSessions[authUserID]
	if ok {
		delete(h.regSessions, authUserID)
	}
	h.mu.Unlock()

	if !ok {
		apiError(w, "no registration in progress", http.StatusBadRequest)
		return
	}

	user, _, err := h.passkeyUser(authUserID)
	if err != nil {
		internalError(w, "loading passkey user", err)
		return
	}

	credential, err := h.wan.FinishRegistration(user, *session, r)
	if err != nil {
		slog.Warn("finishing registration", "err", err)
		apiError(w, "registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}

	if err := h.passkeys.Save(authUserID, name, credential); err != nil {
		internalError(w, "saving credential", err)
		return
	}

	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleBeginLogin starts passkey login (discoverable/conditional).
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		internalError(w, "beginning passkey login", err)
		return
	}

	h.mu.Lock()
	h.loginSessionData = session
	h.mu.Unlock()

	apiJSON(w, assertion, http.StatusOK)
}

// handleFinishLogin completes passkey login and creates a session.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	session := h.loginSessionData
	h.loginSessionData = nil
	h.mu.Unlock()

	if session == nil {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	var loggedIn string

	// userHandle is the WebAuthnID, which is the auth user ID.
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		user, _, err := h.passkeyUser(string(userHandle))
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		if err != nil {
			return nil, err
		}
		loggedIn = string(userHandle)
		return user, nil
	}

	if _, _, err := h.wan.FinishPasskeyLogin(handler, *session, r); err != nil {
		slog.Warn("finishing passkey login", "err", err)
		apiError(w, "login failed", http.StatusUnauthorized)
		return
	}

	if err := h.sessions.Create(w, loggedIn); err != nil {
		internalError(w, "creating session", err)
		return
	}

	slog.Info("login success", "auth_user_id", loggedIn, "method", "passkey")
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
