// Package profile serves the signed-in user's profile, falling back to a
// cached copy when the backend cannot be reached.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Profile is the authenticated user's profile payload. The cache only
// depends on its id; the rest of the document is carried verbatim.
type Profile struct {
	ID  string
	Raw json.RawMessage
}

// Parse extracts the id from a profile document. The id may be a JSON
// string or number.
func Parse(data []byte) (Profile, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Profile{}, err
	}

	id, err := idString(head.ID)
	if err != nil {
		return Profile{}, err
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Profile{ID: id, Raw: raw}, nil
}

// Decode unmarshals the profile payload into v.
func (p Profile) Decode(v interface{}) error {
	return json.Unmarshal(p.Raw, v)
}

// MarshalJSON emits the original payload.
func (p Profile) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

func idString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("profile id missing")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if strings.TrimSpace(s) == "" {
			return "", errors.New("profile id missing")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", err
	}
	return n.String(), nil
}
