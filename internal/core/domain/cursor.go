package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Cursor is the last-seen sort key of a page.
// Score is nil for id-ordered listings.
type Cursor struct {
	Source SearchSource `json:"src"`
	Score  *float64     `json:"s,omitempty"`
	ID     string       `json:"id"`
}

func ScoreCursor(source SearchSource, score float64, id string) *Cursor {
	return &Cursor{Source: source, Score: &score, ID: id}
}

func IDCursor(id string) *Cursor {
	return &Cursor{Source: SourceCatalog, ID: id}
}

// Encode renders the cursor as an unpadded base64url JSON token.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, WrapError(ErrInvalidInput, "decode cursor", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode cursor", err)
	}
	if err := c.validate(); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode cursor", err)
	}
	return &c, nil
}

func (c *Cursor) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("cursor id is empty")
	}
	switch c.Source {
	case SourceEngine, SourceRanker:
		if c.Score == nil {
			return fmt.Errorf("%s cursor without score", c.Source)
		}
	case SourceCatalog:
		if c.Score != nil {
			return errors.New("id cursor with score")
		}
	default:
		return fmt.Errorf("unknown cursor source %q", c.Source)
	}
	return nil
}

// After reports whether (score, id) sorts strictly after the cursor
// in score-descending, id-ascending order.
func (c *Cursor) After(score float64, id string) bool {
	if c == nil {
		return true
	}
	if c.Score == nil {
		return id > c.ID
	}
	if score != *c.Score {
		return score < *c.Score
	}
	return id > c.ID
}
