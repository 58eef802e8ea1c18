// Package cursor encodes and decodes the opaque position tokens handed to
// sync clients.
//
// A sync token marks "everything updated at or before this instant is
// already known". A cursor token marks the continuation point inside a
// single paginated sync and additionally carries the uuid of the last item
// returned, so ties on updated_at at a page boundary are neither repeated
// nor skipped.
//
// Both are base64 of a colon separated string:
//
//	2:<unix epoch seconds, 6 decimals>          sync token
//	2:<unix epoch seconds, 6 decimals>:<uuid>   cursor token
//
// Version 1 tokens carry whole epoch seconds and are still accepted.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Version       = "2"
	legacyVersion = "1"

	// maxEpoch bounds decoded timestamps well inside int64 microseconds.
	maxEpoch = 1e11
)

var ErrMalformedToken = errors.New("malformed token")

// Position is a point in an account's (updated_at, uuid) ordering.
// A Position without a UUID means "strictly after Time".
type Position struct {
	Time time.Time
	UUID uuid.UUID
}

func (p Position) IsZero() bool {
	return p.Time.IsZero() && p.UUID == uuid.Nil
}

// HasUUID reports whether the position is a keyset position.
func (p Position) HasUUID() bool {
	return p.UUID != uuid.Nil
}

func EncodeSyncToken(t time.Time) string {
	return encode(Version + ":" + formatEpoch(t))
}

// DecodeSyncToken returns the zero Position for an empty token.
func DecodeSyncToken(token string) (Position, error) {
	if strings.TrimSpace(token) == "" {
		return Position{}, nil
	}
	parts, err := decode(token)
	if err != nil {
		return Position{}, err
	}
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedToken, len(parts))
	}
	t, err := parseEpoch(parts[0], parts[1])
	if err != nil {
		return Position{}, err
	}
	return Position{Time: t}, nil
}

func EncodeCursorToken(p Position) string {
	s := Version + ":" + formatEpoch(p.Time)
	if p.HasUUID() {
		s += ":" + p.UUID.String()
	}
	return encode(s)
}

// DecodeCursorToken accepts both keyset cursors and timestamp-only cursors.
func DecodeCursorToken(token string) (Position, error) {
	if strings.TrimSpace(token) == "" {
		return Position{}, nil
	}
	parts, err := decode(token)
	if err != nil {
		return Position{}, err
	}
	if len(parts) < 2 || len(parts) > 3 {
		return Position{}, fmt.Errorf("%w: expected 2 or 3 fields, got %d", ErrMalformedToken, len(parts))
	}
	t, err := parseEpoch(parts[0], parts[1])
	if err != nil {
		return Position{}, err
	}
	p := Position{Time: t}
	if len(parts) == 3 {
		id, err := uuid.Parse(parts[2])
		if err != nil {
			return Position{}, fmt.Errorf("%w: invalid uuid: %v", ErrMalformedToken, err)
		}
		p.UUID = id
	}
	return p, nil
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode strips whitespace first: Ruby's Base64.encode64 wraps with newlines.
func decode(token string) ([]string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, token)

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}
	return strings.SplitN(string(raw), ":", 3), nil
}

func formatEpoch(t time.Time) string {
	if t.IsZero() {
		return "0.000000"
	}
	micros := t.UnixMicro()
	if micros < 0 {
		return "0.000000"
	}
	return fmt.Sprintf("%d.%06d", micros/1e6, micros%1e6)
}

func parseEpoch(version, value string) (time.Time, error) {
	switch version {
	case Version:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp: %v", ErrMalformedToken, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxEpoch {
			return time.Time{}, fmt.Errorf("%w: timestamp out of range", ErrMalformedToken)
		}
		return time.UnixMicro(int64(math.Round(f * 1e6))).UTC(), nil
	case legacyVersion:
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil || secs < 0 || secs > maxEpoch {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedToken, value)
		}
		return time.Unix(secs, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedToken, version)
	}
}
