package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/union"
)

func (s *Server) handleListUnions(w http.ResponseWriter, r *http.Request) {
	unions, err := s.unions.List()
	if err != nil {
		internalError(w, "listing unions", err)
		return
	}
	if unions == nil {
		unions = []*union.Union{}
	}
	apiJSON(w, unions, http.StatusOK)
}

type createUnionRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (s *Server) handleCreateUnion(w http.ResponseWriter, r *http.Request) {
	var req createUnionRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apiError(w, "name is required", http.StatusBadRequest)
		return
	}

	u, err := s.unions.Create(strings.ToLower(strings.TrimSpace(req.Slug)), strings.TrimSpace(req.Name))
	if err != nil {
		writeDomainError(w, "creating union", err)
		return
	}
	apiJSON(w, u, http.StatusCreated)
}

type unionStatusRequest struct {
	Status union.Status `json:"status"`
}

func (s *Server) handleSetUnionStatus(w http.ResponseWriter, r *http.Request) {
	var req unionStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := union.Status(strings.ToUpper(string(req.Status)))
	if !status.Valid() {
		apiError(w, "status must be ACTIVE or INACTIVE", http.StatusBadRequest)
		return
	}

	u, err := s.unions.GetBySlug(r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, "getting union", err)
		return
	}
	if err := s.unions.SetStatus(u.ID, status); err != nil {
		writeDomainError(w, "setting union status", err)
		return
	}
	u.Status = status
	apiJSON(w, u, http.StatusOK)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	var unionID int64
	if slug := r.URL.Query().Get("union"); slug != "" {
		u, err := s.unions.GetBySlug(slug)
		if err != nil {
			writeDomainError(w, "getting union", err)
			return
		}
		unionID = u.ID
	}

	tokens, err := s.accessTokens.List(unionID)
	if err != nil {
		internalError(w, "listing access tokens", err)
		return
	}
	if tokens == nil {
		tokens = []*auth.AccessToken{}
	}
	apiJSON(w, tokens, http.StatusOK)
}

// issueTokenRequest takes either a relative expires_in ("72h") or an
// absolute RFC 3339 expires_at.
type issueTokenRequest struct {
	Union     string     `json:"union"`
	Name      string     `json:"name"`
	ExpiresIn string     `json:"expires_in"`
	ExpiresAt *time.Time `json:"expires_at"`
	MaxUses   *int       `json:"max_uses"`
}

type issueTokenResponse struct {
	Token       string            `json:"token"`
	URL         string            `json:"url"`
	AccessToken *auth.AccessToken `json:"access_token"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	expiresAt := req.ExpiresAt
	if req.ExpiresIn != "" {
		if expiresAt != nil {
			apiError(w, "set expires_in or expires_at, not both", http.StatusBadRequest)
			return
		}
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			apiError(w, "invalid expires_in", http.StatusBadRequest)
			return
		}
		t := time.Now().Add(d).UTC()
		expiresAt = &t
	}

	u, err := s.unions.GetBySlug(req.Union)
	if err != nil {
		writeDomainError(w, "getting union", err)
		return
	}

	raw, t, err := s.accessTokens.Issue(auth.IssueInput{
		UnionID:   u.ID,
		Name:      req.Name,
		CreatedBy: actorID(resolution(r)),
		ExpiresAt: expiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		writeDomainError(w, "issuing access token", err)
		return
	}

	apiJSON(w, issueTokenResponse{
		Token:       raw,
		URL:         s.config.BaseURL + "/" + u.Slug + "?access_token=" + raw,
		AccessToken: t,
	}, http.StatusCreated)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid token ID", http.StatusBadRequest)
		return
	}
	if err := s.accessTokens.Revoke(id); err != nil {
		writeDomainError(w, "revoking access token", err)
		return
	}
	t, err := s.accessTokens.Get(id)
	if err != nil {
		writeDomainError(w, "getting access token", err)
		return
	}
	apiJSON(w, t, http.StatusOK)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.List()
	if err != nil {
		internalError(w, "listing keys", err)
		return
	}
	if keys == nil {
		keys = []auth.APIKey{}
	}
	apiJSON(w, keys, http.StatusOK)
}

type createKeyRequest struct {
	Name string `json:"name"`
}

type createKeyResponse struct {
	Key    string       `json:"key"`
	APIKey *auth.APIKey `json:"api_key"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		apiError(w, "name is required", http.StatusBadRequest)
		return
	}

	raw, key, err := s.apiKeys.Create(name, resolution(r).AuthUserID)
	if err != nil {
		internalError(w, "creating key", err)
		return
	}
	apiJSON(w, createKeyResponse{Key: raw, APIKey: key}, http.StatusCreated)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}
	if err := s.apiKeys.Delete(id); err != nil {
		writeDomainError(w, "deleting key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
