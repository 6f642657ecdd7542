package models

import (
	"encoding/json"
	"strings"
)

// FlexBool decodes a boolean field that different backend versions emit as a
// JSON bool, number or string. Decode precedence is bool, then number
// (non-zero is true), then string. Anything else, including null and
// unrecognized strings, decodes as absent rather than failing, to tolerate
// backend inconsistency.
type FlexBool struct {
	Value bool
	Valid bool
}

func TrueFlex() FlexBool  { return FlexBool{Value: true, Valid: true} }
func FalseFlex() FlexBool { return FlexBool{Value: false, Valid: true} }

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	f.Value, f.Valid = false, false

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Value, f.Valid = b, true
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value, f.Valid = n != 0, true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "y":
			f.Value, f.Valid = true, true
		case "false", "0", "no", "n", "":
			f.Value, f.Valid = false, true
		}
		return nil
	}

	// Unknown shape: stay absent, never error.
	return nil
}

func (f FlexBool) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Or returns the decoded value, or def when the field was absent.
func (f FlexBool) Or(def bool) bool {
	if !f.Valid {
		return def
	}
	return f.Value
}
