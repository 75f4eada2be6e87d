package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
)

// Paging is the server side view of a listing. Total counts every matching
// record and does not depend on how many records the current page holds.
type Paging struct {
	Total  int    `json:"total"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

type AlertList struct {
	Data   []AlertSubscription `json:"data"`
	Paging Paging              `json:"paging"`
}

type ListParams struct {
	Limit            int
	After            string
	Before           string
	SubscriptionType SubscriptionType
	Provider         ProviderType
	IncludeDeleted   bool
}

const (
	DefaultPageSize = 15
	MaxPageSize     = 1000
)

// ErrInvalidCursor is wrapped by every error caused by a malformed paging
// cursor.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor turns a row offset into an opaque paging cursor.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodeCursor is the inverse of EncodeCursor. An empty cursor is offset 0.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidCursor, cursor, err)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidCursor, cursor)
	}
	return offset, nil
}

// Window resolves the params into a SQL style offset and limit.
func (p ListParams) Window() (offset, limit int, err error) {
	limit = p.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	switch {
	case p.After != "":
		offset, err = DecodeCursor(p.After)
	case p.Before != "":
		var end int
		end, err = DecodeCursor(p.Before)
		offset = end - limit
		if offset < 0 {
			offset = 0
		}
	}
	return offset, limit, err
}

// NewPaging builds the paging block for a page starting at offset.
func NewPaging(total, offset, returned int) Paging {
	p := Paging{Total: total}
	if offset > 0 {
		p.Before = EncodeCursor(offset)
	}
	if offset+returned < total && returned > 0 {
		p.After = EncodeCursor(offset + returned)
	}
	return p
}
