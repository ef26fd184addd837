package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Canonical re-encodes a JSON value into its canonical form: object keys in
// lexicographic order, no insignificant whitespace. This is part of the wire
// contract — both sides of the grant exchange must canonicalize member
// payloads identically before signing.
func Canonical(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return string(out), nil
}

// ChannelData builds the presence member payload, field order fixed as
// user_id then user_info.
func ChannelData(userID string, userInfo json.RawMessage) (string, error) {
	info, err := Canonical(userInfo)
	if err != nil {
		return "", err
	}
	id, err := json.Marshal(userID)
	if err != nil {
		return "", err
	}
	return `{"user_id":` + string(id) + `,"user_info":` + info + `}`, nil
}
