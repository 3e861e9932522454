package auth

import (
	"errors"
	"net/http"
)

// Route classifies union-scoped endpoints for gating.
type Route int

const (
	RouteUnionInfo Route = iota
	RouteWhoAmI
	RouteRegister
	RouteMemberRead
	RouteAdmin
)

// Decision is the outcome of gating one request. Next is where a browser
// client should go instead, when there is somewhere useful.
type Decision struct {
	Allow  bool   `json:"-"`
	Status int    `json:"-"`
	Reason string `json:"error,omitempty"`
	Next   string `json:"next,omitempty"`
}

var allow = Decision{Allow: true, Status: http.StatusOK}

// Decide gates a route for a resolution.
func Decide(route Route, res *Resolution) Decision {
	slug := ""
	if res.Union != nil {
		slug = res.Union.Slug
	}

	switch route {
	case RouteUnionInfo, RouteWhoAmI:
		return allow
	case RouteRegister:
		if res.Authenticated() {
			return allow
		}
		return deny(http.StatusUnauthorized, "login required", "/"+slug+"/login")
	case RouteMemberRead:
		switch res.Access {
		case AccessMember, AccessAdmin, AccessSystemAdmin, AccessGuest:
			return allow
		}
		return denyFor(res, slug)
	case RouteAdmin:
		switch res.Access {
		case AccessAdmin, AccessSystemAdmin:
			return allow
		case AccessMember, AccessGuest:
			return deny(http.StatusForbidden, "admin access required", "")
		}
		return denyFor(res, slug)
	}
	return deny(http.StatusForbidden, "forbidden", "")
}

func denyFor(res *Resolution, slug string) Decision {
	switch res.Access {
	case AccessAnonymous:
		reason := "login required"
		if res.GuestErr != nil {
			reason = res.GuestErr.Error()
		}
		return deny(http.StatusUnauthorized, reason, "/"+slug+"/login")
	case AccessUnregistered, AccessNeedsProfile:
		return deny(http.StatusForbidden, "registration required", "/"+slug+"/register")
	case AccessPending:
		return deny(http.StatusForbidden, "registration pending approval", "/"+slug+"/pending")
	case AccessRejected:
		return deny(http.StatusForbidden, "registration rejected", "/"+slug+"/rejected")
	}
	return deny(http.StatusForbidden, "forbidden", "")
}

func deny(status int, reason, next string) Decision {
	return Decision{Status: status, Reason: reason, Next: next}
}

// StatusForError maps a resolve error to an HTTP status.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnionInactive):
		return http.StatusGone
	case errors.Is(err, ErrInvalidAPIKey):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
