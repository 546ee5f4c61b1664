package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// DeviceID decodes from a JSON string or number; older firmware reports the
// id numerically.
type DeviceID string

func (d *DeviceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DeviceID(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = DeviceID(n.String())
	return nil
}

// TypeCode decodes the numeric event type from a number or numeric string.
type TypeCode int

func (c *TypeCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = TypeCode(n)
	return nil
}
