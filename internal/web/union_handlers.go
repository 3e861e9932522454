package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/evcraddock/johap/internal/auth"
	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/notice"
	"github.com/evcraddock/johap/internal/union"
)

// unionInfo is the public view of a union.
type unionInfo struct {
	Slug   string       `json:"slug"`
	Name   string       `json:"name"`
	Status union.Status `json:"status"`
}

func (s *Server) handleUnionInfo(w http.ResponseWriter, r *http.Request) {
	u := resolution(r).Union
	apiJSON(w, unionInfo{Slug: u.Slug, Name: u.Name, Status: u.Status}, http.StatusOK)
}

// guestInfo describes the guest token a request is using.
type guestInfo struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type whoAmIResponse struct {
	Union   unionInfo       `json:"union"`
	Access  auth.Access     `json:"access"`
	Profile *member.Profile `json:"profile,omitempty"`
	Guest   *guestInfo      `json:"guest,omitempty"`
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	res := resolution(r)
	resp := whoAmIResponse{
		Union:   unionInfo{Slug: res.Union.Slug, Name: res.Union.Name, Status: res.Union.Status},
		Access:  res.Access,
		Profile: res.Profile,
	}
	if res.Guest != nil {
		resp.Guest = &guestInfo{Name: res.Guest.Name, ExpiresAt: res.Guest.ExpiresAt}
	}
	apiJSON(w, resp, http.StatusOK)
}

type registerResponse struct {
	Profile   *member.Profile     `json:"profile"`
	Detection *conflict.Detection `json:"detection,omitempty"`
}

// handleRegister creates or resubmits the caller's profile in the union. A
// profile that reaches PENDING_APPROVAL is matched against the registry
// right away so admins see its conflicts.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	res := resolution(r)

	var in member.Input
	if err := decodeJSON(r, &in); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if res.Access == auth.AccessSystemAdmin {
		apiError(w, "system admins cannot register in a union", http.StatusConflict)
		return
	}

	var (
		p    *member.Profile
		err  error
		code = http.StatusOK
	)
	switch {
	case res.Profile == nil:
		p, err = s.members.Register(r.Context(), res.AuthUserID, res.Union.ID, in)
		code = http.StatusCreated
	case res.Profile.Status == member.StatusApproved, res.Profile.Status == member.StatusPendingApproval:
		apiError(w, "already registered", http.StatusConflict)
		return
	default:
		p, err = s.members.Resubmit(res.Profile.ID, in)
	}
	if err != nil {
		writeDomainError(w, "registering member", err)
		return
	}

	resp := registerResponse{Profile: p}
	if p.Status == member.StatusPendingApproval {
		det, err := s.conflicts.Detect(r.Context(), p.ID)
		if err != nil {
			internalError(w, "detecting conflicts", err)
			return
		}
		resp.Detection = det
	}
	apiJSON(w, resp, code)
}

func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.notices.ListByUnion(resolution(r).Union.ID)
	if err != nil {
		internalError(w, "listing notices", err)
		return
	}
	if notices == nil {
		notices = []*notice.Notice{}
	}
	apiJSON(w, notices, http.StatusOK)
}

func (s *Server) handleGetNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid notice ID", http.StatusBadRequest)
		return
	}
	n, err := s.notices.Get(resolution(r).Union.ID, id)
	if err != nil {
		writeDomainError(w, "getting notice", err)
		return
	}
	apiJSON(w, n, http.StatusOK)
}

type addNoticeRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

func (s *Server) handleAddNotice(w http.ResponseWriter, r *http.Request) {
	res := resolution(r)

	var req addNoticeRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := s.notices.Add(res.Union.ID, req.Title, req.Body, actorID(res), req.Pinned)
	if err != nil {
		writeDomainError(w, "adding notice", err)
		return
	}
	apiJSON(w, n, http.StatusCreated)
}

func (s *Server) handlePinNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid notice ID", http.StatusBadRequest)
		return
	}

	req := struct {
		Pinned *bool `json:"pinned"`
	}{}
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pinned := true
	if req.Pinned != nil {
		pinned = *req.Pinned
	}

	unionID := resolution(r).Union.ID
	if err := s.notices.SetPinned(unionID, id, pinned); err != nil {
		writeDomainError(w, "pinning notice", err)
		return
	}
	n, err := s.notices.Get(unionID, id)
	if err != nil {
		writeDomainError(w, "getting notice", err)
		return
	}
	apiJSON(w, n, http.StatusOK)
}

func (s *Server) handleDeleteNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid notice ID", http.StatusBadRequest)
		return
	}
	if err := s.notices.Delete(resolution(r).Union.ID, id); err != nil {
		if errors.Is(err, notice.ErrNotFound) {
			apiError(w, "notice not found", http.StatusNotFound)
			return
		}
		internalError(w, "deleting notice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
