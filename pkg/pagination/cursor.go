package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit represents the counting unit used by cursors.
type Unit string

const (
	UnitRows Unit = "rows"
)

// Cursor is the canonical, opaque pagination token (pre-encoding) with short field names to
// minimize payload size. It is serialized to minified JSON and encoded with URL-safe base64.
// A cursor carries its inputs so a page can be resumed from the token alone.
//
// Fields:
//   - v:   version of the cursor schema
//   - p:   input spreadsheet paths, in load order
//   - m:   selected month (YYYY-MM), empty for all months
//   - sf:  selected source file, empty for all sources
//   - u:   unit: "rows"
//   - off: offset in unit from the start of the selection
//   - ps:  page size in the chosen unit
//   - iat: issued-at timestamp (unix seconds)
//   - h:   hash over p, m and sf binding the offset to its selection
type Cursor struct {
	V   int      `json:"v"`
	P   []string `json:"p"`
	M   string   `json:"m,omitempty"`
	Sf  string   `json:"sf,omitempty"`
	U   Unit     `json:"u"`
	Off int      `json:"off"`
	Ps  int      `json:"ps"`
	Iat int64    `json:"iat"`
	H   string   `json:"h"`
}

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	c.H = SelectionHash(c.P, c.M, c.Sf)
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	if c.H != SelectionHash(c.P, c.M, c.Sf) {
		return nil, errors.New("cursor: selection hash mismatch")
	}
	return &c, nil
}

// SelectionHash fingerprints the inputs and selection a cursor pages over.
func SelectionHash(paths []string, month, source string) string {
	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	h.Write([]byte(month))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if len(c.P) == 0 {
		return errors.New("cursor: p (paths) required")
	}
	for _, p := range c.P {
		if strings.TrimSpace(p) == "" {
			return errors.New("cursor: empty path")
		}
	}
	if c.U == "" {
		c.U = UnitRows
	}
	if c.U != UnitRows {
		return fmt.Errorf("cursor: invalid unit %q", string(c.U))
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	return nil
}

// NextOffset computes the next offset after returning n units.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
