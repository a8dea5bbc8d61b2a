package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Cursor is an opaque continuation token: the serialized sort key of the
// last row of the previous page plus the external id tie-break. It is bound
// to the sort it was taken under; a cursor presented against a different
// sort fails to decode.
type Cursor struct {
	Field      SortField     `json:"f"`
	Direction  SortDirection `json:"d"`
	Value      string        `json:"v"`
	Null       bool          `json:"n,omitempty"`
	ExternalID string        `json:"id"`
}

// EncodeCursor serializes the continuation token for the given row.
func EncodeCursor(t *Tender, s SortSpec) string {
	value, null := s.Key(t)
	c := Cursor{
		Field:      s.Field,
		Direction:  s.Direction,
		Value:      value,
		Null:       null,
		ExternalID: t.ExternalID,
	}
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token and validates it against the active sort.
// All failure modes return ErrInvalidCursor.
func DecodeCursor(token string, s SortSpec) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Field != s.Field || c.Direction != s.Direction {
		return nil, fmt.Errorf("%w: cursor for sort %s/%s, active sort %s/%s",
			ErrInvalidCursor, c.Field, c.Direction, s.Field, s.Direction)
	}
	if c.ExternalID == "" {
		return nil, fmt.Errorf("%w: missing tie-break id", ErrInvalidCursor)
	}
	if !c.Null {
		if err := validateCursorValue(c.Field, c.Value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
	}
	return &c, nil
}

func validateCursorValue(field SortField, value string) error {
	switch field {
	case SortByCreatedAt:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("bad timestamp %q", value)
		}
	case SortByDeadline:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("bad date %q", value)
		}
	case SortByPrice:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("bad price %q", value)
		}
	}
	return nil
}
