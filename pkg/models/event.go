package models

import (
	"bytes"
	"encoding/json"
)

// Event type codes used by the events API (the "type" query parameter)
const (
	TypeMemberGuest    = 3
	TypeAudio          = 28
	TypeLogo           = 29
	TypeChannelChanged = 68
	TypeShutdown       = 69
)

// Event names as they appear in Event_Name
const (
	EventMemberGuest    = "MEMBER_GUEST_DECLARATION"
	EventAudio          = "AUDIO_FINGERPRINT"
	EventLogo           = "LOGO_DETECTED"
	EventChannelChanged = "CHANNEL_CHANGED"
	EventShutdown       = "SHUT_DOWN"
)

// FleetTypes is the set requested by the fleet metrics endpoint.
var FleetTypes = []int{TypeMemberGuest, TypeAudio, TypeLogo, TypeChannelChanged, TypeShutdown}

// TypeName maps a type code to its event name. Unknown codes return "".
func TypeName(code int) string {
	switch code {
	case TypeMemberGuest:
		return EventMemberGuest
	case TypeAudio:
		return EventAudio
	case TypeLogo:
		return EventLogo
	case TypeChannelChanged:
		return EventChannelChanged
	case TypeShutdown:
		return EventShutdown
	}
	return ""
}

// EventListResponse wraps GET /events and GET /events/{deviceId}
type EventListResponse struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	Message string  `json:"message,omitempty"` // e.g. "No events found with the specified criteria"
}

// LatestEventResponse wraps GET /events/latest and GET /events/member-guest/{deviceId}
type LatestEventResponse struct {
	Event *Event `json:"event"`
}

// DetectionListResponse wraps the legacy GET /events/logo and GET /events/afp
type DetectionListResponse struct {
	Data []Detection `json:"data"`
}

// Detection is a flat row returned by the legacy detection endpoints.
type Detection struct {
	TS        Timestamp `json:"TS"`
	ChannelID string    `json:"channel_id"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Logo      string    `json:"logoDetection,omitempty"`
}

type Event struct {
	ObjectID  string          `json:"_id,omitempty"`
	DeviceID  DeviceID        `json:"DEVICE_ID"`
	TS        Timestamp       `json:"TS"`
	Type      TypeCode        `json:"Type,omitempty"`
	EventName string          `json:"Event_Name"`
	Details   json.RawMessage `json:"Details,omitempty"`
	ID        json.RawMessage `json:"ID,omitempty"`
}

// DetailsText returns Details as shown in tables: the raw string when the
// API sent a string, compact JSON otherwise.
func (e Event) DetailsText() string {
	raw := bytes.TrimSpace(e.Details)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// DetailsIndented is the pretty-printed form used for tooltips and --json.
func (e Event) DetailsIndented() string {
	raw := bytes.TrimSpace(e.Details)
	if len(raw) == 0 || raw[0] != '{' {
		return e.DetailsText()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// IsChannelChange reports whether the row should be highlighted in event logs.
func (e Event) IsChannelChange() bool {
	return e.EventName == EventChannelChanged
}
