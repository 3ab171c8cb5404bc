// Package pagination implements the opaque cursor tokens used by list
// endpoints. A token is the Firestore cursor position encoded as
// URL-safe base64 so clients can hand it back verbatim.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageToken is returned when a client-supplied token cannot be
// decoded back into a cursor.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")

// Cursor carries the document field values a Firestore query resumes from.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// Empty reports whether the cursor points at the start of the collection.
func (c Cursor) Empty() bool {
	return len(c.StartAfter) == 0 && len(c.StartAt) == 0
}

// EncodeToken serialises the cursor into a page token. An empty cursor
// yields an empty token, meaning there is no further page.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.Empty() {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a token produced by EncodeToken. A blank token decodes
// to the zero cursor.
func DecodeToken(token string) (Cursor, error) {
	var cursor Cursor
	token = strings.TrimSpace(token)
	if token == "" {
		return cursor, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err == nil {
		err = json.Unmarshal(raw, &cursor)
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}
