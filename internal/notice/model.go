// Package notice provides a union's notice board.
package notice

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("notice not found")
	ErrTitleRequired = errors.New("notice title is required")
	ErrBodyRequired  = errors.New("notice body is required")
)

// Notice is a post on a union's board. Body is stored as given.
type Notice struct {
	ID        int64      `json:"id"`
	UnionID   int64      `json:"union_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	AuthorID  string     `json:"author_id"`
	Pinned    bool       `json:"pinned"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
