// Package web provides the JSON HTTP API server.
package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/config"
	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/logging"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/notice"
	"github.com/evcraddock/johap/internal/oauth"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/property"
	"github.com/evcraddock/johap/internal/union"
)

// Server is the API HTTP server.
type Server struct {
	config auth.Config

	unions    *union.Repository
	members   *member.Repository
	units     *property.Repository
	props     *property.Service
	owners    *ownership.Repository
	conflicts *conflict.Service
	notices   *notice.Repository

	sessions     *auth.SessionStore
	loginTokens  *auth.TokenStore
	users        *auth.AuthUserStore
	apiKeys      *auth.APIKeyStore
	accessTokens *auth.AccessTokenStore
	resolver     *auth.Resolver
	mailer       *auth.Mailer

	handler http.Handler
}

// NewServer creates an API server over the database. A nil lookup disables
// address resolution when adding units.
func NewServer(d *sql.DB, cfg config.Config, lookup property.Lookuper) (*Server, error) {
	authCfg := auth.ConfigFrom(cfg)
	secure := authCfg.SecureCookies()

	s := &Server{
		config:       authCfg,
		unions:       union.NewRepository(d),
		members:      member.NewRepository(d),
		units:        property.NewRepository(d),
		owners:       ownership.NewRepository(d),
		conflicts:    conflict.NewService(d),
		notices:      notice.NewRepository(d),
		sessions:     auth.NewSessionStore(d, secure),
		loginTokens:  auth.NewTokenStore(d),
		users:        auth.NewAuthUserStore(d, authCfg.AdminEmail),
		apiKeys:      auth.NewAPIKeyStore(d),
		accessTokens: auth.NewAccessTokenStore(d),
		mailer:       auth.NewMailer(authCfg),
	}
	s.props = property.NewService(s.units, lookup)
	s.resolver = auth.NewResolver(s.unions, s.members, s.sessions, s.apiKeys, s.accessTokens, secure)

	passkeys, err := newPasskeyHandlers(authCfg, auth.NewPasskeyStore(d), s.sessions, s.users)
	if err != nil {
		return nil, fmt.Errorf("configuring passkeys: %w", err)
	}

	var oauthHandler *oauth.Handler
	if providers := oauth.Providers(cfg); len(providers) > 0 {
		oauthHandler = oauth.NewHandler(providers, oauth.NewStateSigner(cfg.Auth.StateSecret),
			s.unions, s.users, s.sessions, cfg.BaseURL)
	}

	mux := http.NewServeMux()
	s.routes(mux, passkeys, oauthHandler)
	s.handler = logging.RequestLogger(mux)
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, passkeys *passkeyHandlers, oauthHandler *oauth.Handler) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	// Console login.
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/verify", s.handleVerify)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	if oauthHandler != nil {
		mux.HandleFunc("GET /auth/{provider}/start", oauthHandler.Start)
		mux.HandleFunc("GET /auth/{provider}/callback", oauthHandler.Callback)
	}

	mux.Handle("POST /passkey/register/begin", auth.RequireAuth(s.resolver, http.HandlerFunc(passkeys.handleBeginRegistration)))
	mux.Handle("POST /passkey/register/finish", auth.RequireAuth(s.resolver, http.HandlerFunc(passkeys.handleFinishRegistration)))
	mux.HandleFunc("POST /passkey/login/begin", passkeys.handleBeginLogin)
	mux.HandleFunc("POST /passkey/login/finish", passkeys.handleFinishLogin)

	// Union-scoped API.
	gate := func(pattern string, route auth.Route, h http.HandlerFunc) {
		mux.Handle(pattern, auth.Gate(s.resolver, route, h))
	}
	gate("GET /api/unions/{slug}", auth.RouteUnionInfo, s.handleUnionInfo)
	gate("GET /api/unions/{slug}/me", auth.RouteWhoAmI, s.handleWhoAmI)
	gate("POST /api/unions/{slug}/register", auth.RouteRegister, s.handleRegister)

	gate("GET /api/unions/{slug}/notices", auth.RouteMemberRead, s.handleListNotices)
	gate("GET /api/unions/{slug}/notices/{id}", auth.RouteMemberRead, s.handleGetNotice)
	gate("POST /api/unions/{slug}/notices", auth.RouteAdmin, s.handleAddNotice)
	gate("POST /api/unions/{slug}/notices/{id}/pin", auth.RouteAdmin, s.handlePinNotice)
	gate("DELETE /api/unions/{slug}/notices/{id}", auth.RouteAdmin, s.handleDeleteNotice)

	gate("GET /api/unions/{slug}/admin/members", auth.RouteAdmin, s.handleListMembers)
	gate("GET /api/unions/{slug}/admin/members/{id}", auth.RouteAdmin, s.handleGetMember)
	gate("POST /api/unions/{slug}/admin/members/{id}/approve", auth.RouteAdmin, s.handleApproveMember)
	gate("POST /api/unions/{slug}/admin/members/{id}/reject", auth.RouteAdmin, s.handleRejectMember)
	gate("POST /api/unions/{slug}/admin/members/{id}/role", auth.RouteAdmin, s.handleSetRole)
	gate("GET /api/unions/{slug}/admin/members/{id}/match", auth.RouteAdmin, s.handleMatchMember)

	gate("GET /api/unions/{slug}/admin/units", auth.RouteAdmin, s.handleListUnits)
	gate("POST /api/unions/{slug}/admin/units", auth.RouteAdmin, s.handleAddUnit)
	gate("DELETE /api/unions/{slug}/admin/units/{id}", auth.RouteAdmin, s.handleDeleteUnit)
	gate("GET /api/unions/{slug}/admin/units/{id}/events", auth.RouteAdmin, s.handleUnitEvents)

	gate("GET /api/unions/{slug}/admin/conflicts", auth.RouteAdmin, s.handleListConflicts)
	gate("POST /api/unions/{slug}/admin/conflicts/{id}/resolve", auth.RouteAdmin, s.handleResolveConflict)
	gate("POST /api/unions/{slug}/admin/conflicts/{id}/dismiss", auth.RouteAdmin, s.handleDismissConflict)

	// System console.
	system := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireSystemAdmin(s.resolver, h))
	}
	system("GET /api/system/unions", s.handleListUnions)
	system("POST /api/system/unions", s.handleCreateUnion)
	system("POST /api/system/unions/{slug}/status", s.handleSetUnionStatus)
	system("GET /api/system/tokens", s.handleListTokens)
	system("POST /api/system/tokens", s.handleIssueToken)
	system("DELETE /api/system/tokens/{id}", s.handleRevokeToken)
	system("GET /api/system/keys", s.handleListKeys)
	system("POST /api/system/keys", s.handleCreateKey)
	system("DELETE /api/system/keys/{id}", s.handleDeleteKey)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Cleanup purges expired sessions, login links and guest tokens.
func (s *Server) Cleanup() error {
	var errs []error
	for name, fn := range map[string]func() (int64, error){
		"sessions":      s.sessions.Cleanup,
		"login links":   s.loginTokens.Cleanup,
		"access tokens": s.accessTokens.Cleanup,
	} {
		n, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("cleaning %s: %w", name, err))
			continue
		}
		if n > 0 {
			slog.Info("expired records removed", "kind", name, "count", n)
		}
	}
	return errors.Join(errs...)
}

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	apiJSON(w, map[string]string{"error": msg}, code)
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// internalError logs err and writes a generic 500.
func internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "err", err)
	apiError(w, "internal error", http.StatusInternalServerError)
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// resolution returns the gate's resolution for the request.
func resolution(r *http.Request) *auth.Resolution {
	return auth.ResolutionFromContext(r.Context())
}

// actorID is the acting profile for audit fields.
func actorID(res *auth.Resolution) string {
	if res.Profile != nil {
		return res.Profile.ID
	}
	return res.AuthUserID
}
