package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/evcraddock/johap/internal/conflict"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/property"
)

// unionMember loads the {id} profile and checks it belongs to the request's
// union. Profiles in other unions are reported as not found.
func (s *Server) unionMember(w http.ResponseWriter, r *http.Request) (*member.Profile, bool) {
	p, err := s.members.GetByID(r.PathValue("id"))
	if err == nil && (p.UnionID == nil || *p.UnionID != resolution(r).Union.ID) {
		err = member.ErrNotFound
	}
	if err != nil {
		writeDomainError(w, "getting member", err)
		return nil, false
	}
	return p, true
}

// unionConflict loads the {id} conflict within the request's union.
func (s *Server) unionConflict(w http.ResponseWriter, r *http.Request) (*conflict.Conflict, bool) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid conflict ID", http.StatusBadRequest)
		return nil, false
	}
	c, err := s.conflicts.Get(r.Context(), id)
	if err == nil && c.UnionID != resolution(r).Union.ID {
		err = conflict.ErrNotFound
	}
	if err != nil {
		writeDomainError(w, "getting conflict", err)
		return nil, false
	}
	return c, true
}

// unionUnit loads the {id} unit within the request's union.
func (s *Server) unionUnit(w http.ResponseWriter, r *http.Request) (*property.Unit, bool) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid unit ID", http.StatusBadRequest)
		return nil, false
	}
	u, err := s.units.GetByID(id)
	if err == nil && u.UnionID != resolution(r).Union.ID {
		err = property.ErrNotFound
	}
	if err != nil {
		writeDomainError(w, "getting unit", err)
		return nil, false
	}
	return u, true
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	status := member.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		apiError(w, "invalid status", http.StatusBadRequest)
		return
	}

	members, err := s.members.ListByUnion(resolution(r).Union.ID, status)
	if err != nil {
		internalError(w, "listing members", err)
		return
	}
	if members == nil {
		members = []*member.Profile{}
	}
	apiJSON(w, members, http.StatusOK)
}

// memberDetail is a profile with its active holdings and linked logins.
type memberDetail struct {
	*member.Profile
	Holdings    []*ownership.Ownership `json:"holdings"`
	AuthUserIDs []string               `json:"auth_user_ids"`
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	p, ok := s.unionMember(w, r)
	if !ok {
		return
	}

	holdings, err := s.owners.ActiveByUser(p.ID)
	if err != nil {
		internalError(w, "listing holdings", err)
		return
	}
	if holdings == nil {
		holdings = []*ownership.Ownership{}
	}
	links, err := s.members.AuthUserIDs(p.ID)
	if err != nil {
		internalError(w, "listing auth links", err)
		return
	}
	if links == nil {
		links = []string{}
	}

	apiJSON(w, memberDetail{Profile: p, Holdings: holdings, AuthUserIDs: links}, http.StatusOK)
}

type approveRequest struct {
	AllowUnmatched bool `json:"allow_unmatched"`
}

// approveConflictResponse lists what blocks an approval.
type approveConflictResponse struct {
	Error     string               `json:"error"`
	Conflicts []*conflict.Conflict `json:"conflicts"`
}

func (s *Server) handleApproveMember(w http.ResponseWriter, r *http.Request) {
	p, ok := s.unionMember(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := resolution(r)
	approval, err := s.conflicts.Approve(r.Context(), p.ID, actorID(res), req.AllowUnmatched)
	if errors.Is(err, conflict.ErrOpenConflicts) {
		open, lerr := s.openConflictsFor(r, p.ID)
		if lerr != nil {
			internalError(w, "listing open conflicts", lerr)
			return
		}
		apiJSON(w, approveConflictResponse{Error: err.Error(), Conflicts: open}, http.StatusConflict)
		return
	}
	if err != nil {
		writeDomainError(w, "approving member", err)
		return
	}
	apiJSON(w, approval, http.StatusOK)
}

// openConflictsFor returns the OPEN conflicts of one registrant.
func (s *Server) openConflictsFor(r *http.Request, userID string) ([]*conflict.Conflict, error) {
	all, err := s.conflicts.List(r.Context(), resolution(r).Union.ID, conflict.StatusOpen)
	if err != nil {
		return nil, err
	}
	open := []*conflict.Conflict{}
	for _, c := range all {
		if c.PendingUserID == userID {
			open = append(open, c)
		}
	}
	return open, nil
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectMember(w http.ResponseWriter, r *http.Request) {
	p, ok := s.unionMember(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.members.Reject(p.ID, strings.TrimSpace(req.Reason)); err != nil {
		writeDomainError(w, "rejecting member", err)
		return
	}
	s.writeMember(w, p.ID)
}

type roleRequest struct {
	Role member.Role `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	p, ok := s.unionMember(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.members.SetRole(p.ID, member.Role(strings.ToUpper(string(req.Role)))); err != nil {
		writeDomainError(w, "setting role", err)
		return
	}
	s.writeMember(w, p.ID)
}

// writeMember reloads a profile and writes it.
func (s *Server) writeMember(w http.ResponseWriter, id string) {
	p, err := s.members.GetByID(id)
	if err != nil {
		writeDomainError(w, "getting member", err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

func (s *Server) handleMatchMember(w http.ResponseWriter, r *http.Request) {
	p, ok := s.unionMember(w, r)
	if !ok {
		return
	}
	m, err := s.conflicts.Match(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, "matching member", err)
		return
	}
	apiJSON(w, m, http.StatusOK)
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.units.List(resolution(r).Union.ID)
	if err != nil {
		internalError(w, "listing units", err)
		return
	}
	if units == nil {
		units = []*property.Unit{}
	}
	apiJSON(w, units, http.StatusOK)
}

func (s *Server) handleAddUnit(w http.ResponseWriter, r *http.Request) {
	var in property.AddInput
	if err := decodeJSON(r, &in); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Address) == "" && strings.TrimSpace(in.PNU) == "" {
		apiError(w, "address or pnu is required", http.StatusBadRequest)
		return
	}

	u, err := s.props.Add(r.Context(), resolution(r).Union.ID, in)
	if err != nil {
		writeDomainError(w, "adding unit", err)
		return
	}
	apiJSON(w, u, http.StatusCreated)
}

func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		apiError(w, "invalid unit ID", http.StatusBadRequest)
		return
	}
	if err := s.units.Delete(resolution(r).Union.ID, id); err != nil {
		writeDomainError(w, "deleting unit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnitEvents(w http.ResponseWriter, r *http.Request) {
	u, ok := s.unionUnit(w, r)
	if !ok {
		return
	}
	events, err := s.owners.Events(u.ID)
	if err != nil {
		internalError(w, "listing ownership events", err)
		return
	}
	if events == nil {
		events = []*ownership.Record{}
	}
	apiJSON(w, events, http.StatusOK)
}

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	status := conflict.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		apiError(w, "invalid status", http.StatusBadRequest)
		return
	}

	list, err := s.conflicts.List(r.Context(), resolution(r).Union.ID, status)
	if err != nil {
		internalError(w, "listing conflicts", err)
		return
	}
	if list == nil {
		list = []*conflict.Conflict{}
	}
	apiJSON(w, list, http.StatusOK)
}

type resolveRequest struct {
	Action conflict.Action `json:"action"`
	Note   string          `json:"note"`
	Reason string          `json:"reason"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	c, ok := s.unionConflict(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	action := conflict.Action(strings.ToUpper(string(req.Action)))
	out, err := s.conflicts.Resolve(r.Context(), c.ID, action, conflict.ResolveInput{
		ActorID: actorID(resolution(r)),
		Note:    strings.TrimSpace(req.Note),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeDomainError(w, "resolving conflict", err)
		return
	}
	apiJSON(w, out, http.StatusOK)
}

type dismissRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleDismissConflict(w http.ResponseWriter, r *http.Request) {
	c, ok := s.unionConflict(w, r)
	if !ok {
		return
	}

	var req dismissRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.conflicts.Dismiss(r.Context(), c.ID, actorID(resolution(r)), strings.TrimSpace(req.Note))
	if err != nil {
		writeDomainError(w, "dismissing conflict", err)
		return
	}
	apiJSON(w, out, http.StatusOK)
}
