package conversation

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Conversation is the durable 1:1 channel between two distinct users.
// UserLow and UserHigh hold the participants in normalized order.
type Conversation struct {
	ID             string
	UserLow        string
	UserHigh       string
	LastSequence   int64
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserLow == userID || c.UserHigh == userID)
}

// OtherParticipant returns the participant that is not userID.
// The result is empty when userID is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.UserLow:
		return c.UserHigh
	case c.UserHigh:
		return c.UserLow
	default:
		return ""
	}
}

// Participants returns both participant ids.
func (c *Conversation) Participants() [2]string {
	return [2]string{c.UserLow, c.UserHigh}
}

// Pair is an unordered user pair in normalized form.
type Pair struct {
	Low  string
	High string
}

// NewPair normalizes two user ids so that (a, b) and (b, a) compare equal.
func NewPair(a, b string) Pair {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Key returns a stable string form of the pair.
func (p Pair) Key() string {
	return p.Low + ":" + p.High
}

// Pagination describes a page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// NormalizePagination applies defaults and bounds to a page request.
func NormalizePagination(page, pageSize, defaultSize, maxSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}
