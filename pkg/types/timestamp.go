package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyLayout is the zone-less ISO-8601 form written by older snapshot files.
const legacyLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a UTC instant serialized as an ISO-8601 string.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp accepts RFC 3339 and the zone-less legacy layout. Legacy
// values were written in the host's local time and are read that way.
func ParseTimestamp(s string) (Timestamp, error) {
	return ParseTimestampIn(s, time.Local)
}

// ParseTimestampIn is ParseTimestamp with loc as the zone for legacy values.
func ParseTimestampIn(s string, loc *time.Location) (Timestamp, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(parsed), nil
	}
	parsed, err := time.ParseInLocation(legacyLayout, s, loc)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return NewTimestamp(parsed), nil
}
