package scans

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadCursor is returned by ParseCursor for tokens it did not produce.
var ErrBadCursor = errors.New("invalid cursor")

// Cursor points at the last record of a page; the next page starts strictly after it.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        ScanID    `json:"id"`
}

// Encode renders the cursor as an opaque url-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMilli(), 10) + ":" + string(c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token produced by Cursor.Encode.
func ParseCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrBadCursor
	}
	ms, id, ok := strings.Cut(string(b), ":")
	if !ok || id == "" {
		return nil, ErrBadCursor
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return nil, ErrBadCursor
	}
	return &Cursor{CreatedAt: time.UnixMilli(n).UTC(), ID: ScanID(id)}, nil
}

// ListOptions for ListByIdentity. Zero Limit means the repository default.
type ListOptions struct {
	Limit  int
	Before *Cursor
}

// Page represents one page of a newest-first history listing
type Page struct {
	Data       []*ScanRecord `json:"data"`
	NextCursor *Cursor       `json:"next_cursor,omitempty"`
}
