package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/johap/internal/auth"
)

const loginSentMsg = "If that email is registered, a login link has been sent. Check your inbox."

// handleLogin sends a console login link. The response never reveals
// whether the email is allowed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &body); err != nil {
			apiError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			apiError(w, "bad request", http.StatusBadRequest)
			return
		}
		body.Email = r.FormValue("email")
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		apiError(w, "email is required", http.StatusBadRequest)
		return
	}

	if s.users.EmailAllowed(email) {
		token, err := s.loginTokens.Create(email)
		if err != nil {
			slog.Error("creating login token", "err", err)
		} else if _, err := s.mailer.SendLoginLink(email, token); err != nil {
			slog.Error("sending login link", "err", err)
		}
	} else {
		slog.Warn("login link refused", "email", email)
	}

	apiJSON(w, map[string]string{"message": loginSentMsg}, http.StatusAccepted)
}

// handleVerify validates a login link, creates a session and sends the
// browser to the system console.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apiError(w, "invalid login link", http.StatusBadRequest)
		return
	}

	email, err := s.loginTokens.Validate(token)
	if errors.Is(err, auth.ErrLinkInvalid) || errors.Is(err, auth.ErrLinkUsed) || errors.Is(err, auth.ErrLinkExpired) {
		apiError(w, "invalid or expired login link, please request a new one", http.StatusUnauthorized)
		return
	}
	if err != nil {
		internalError(w, "validating login link", err)
		return
	}

	user, err := s.users.Upsert(r.Context(), auth.ProviderEmail, email, email, "")
	if err != nil {
		internalError(w, "upserting email identity", err)
		return
	}

	// The configured admin email bootstraps the first system admin.
	if s.users.IsAdminEmail(email) {
		if _, err := s.members.EnsureSystemAdmin(r.Context(), user.ID, email); err != nil {
			internalError(w, "ensuring system admin", err)
			return
		}
	}

	if err := s.sessions.Create(w, user.ID); err != nil {
		internalError(w, "creating session", err)
		return
	}

	slog.Info("login success", "auth_user_id", user.ID, "method", "email")
	http.Redirect(w, r, "/system", http.StatusSeeOther)
}

// handleLogout destroys the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		slog.Error("destroying session", "err", err)
	}
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
