package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp is an updated-at/created-at value as stored by a replica.
//
// The raw text is kept verbatim so a record round-trips unchanged; the parsed
// instant is used for ordering. A Timestamp whose text cannot be parsed is
// invalid and orders before every valid one ("infinitely old"); two invalid
// timestamps compare equal.
type Timestamp struct {
	raw string
	t   time.Time
	ok  bool
}

// ParseTimestamp parses RFC 3339 text and falls back to the looser ISO and
// SQL layouts understood by dateparse. It never fails; unparseable input
// yields an invalid Timestamp that still carries the original text.
func ParseTimestamp(s string) Timestamp {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Timestamp{raw: s}
	}
	t, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		t, err = dateparse.ParseIn(trimmed, time.UTC)
	}
	if err != nil {
		return Timestamp{raw: s}
	}
	return Timestamp{raw: s, t: t.UTC(), ok: true}
}

// TimestampOf returns a valid Timestamp for t, rendered as RFC 3339 in UTC.
func TimestampOf(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{raw: t.Format(time.RFC3339Nano), t: t, ok: true}
}

// Now is TimestampOf(time.Now()).
func Now() Timestamp { return TimestampOf(time.Now()) }

func (ts Timestamp) String() string  { return ts.raw }
func (ts Timestamp) Time() time.Time { return ts.t }
func (ts Timestamp) Valid() bool     { return ts.ok }
func (ts Timestamp) IsZero() bool    { return ts.raw == "" }

// Compare returns -1, 0 or +1 as ts is older than, equal to or newer than o.
func (ts Timestamp) Compare(o Timestamp) int {
	switch {
	case !ts.ok && !o.ok:
		return 0
	case !ts.ok:
		return -1
	case !o.ok:
		return 1
	default:
		return ts.t.Compare(o.t)
	}
}

func (ts Timestamp) After(o Timestamp) bool  { return ts.Compare(o) > 0 }
func (ts Timestamp) Before(o Timestamp) bool { return ts.Compare(o) < 0 }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(ts.raw)
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// numbers and other non-string values are kept as invalid text
		*ts = Timestamp{raw: string(b)}
		return nil
	}
	*ts = ParseTimestamp(s)
	return nil
}

// Scan implements sql.Scanner for timestamptz and text columns.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts = Timestamp{}
	case time.Time:
		*ts = TimestampOf(v)
	case string:
		*ts = ParseTimestamp(v)
	case []byte:
		*ts = ParseTimestamp(string(v))
	default:
		*ts = Timestamp{}
	}
	return nil
}

// Value implements driver.Valuer; invalid timestamps are written as NULL.
func (ts Timestamp) Value() (driver.Value, error) {
	if !ts.ok {
		return nil, nil
	}
	return ts.t, nil
}
