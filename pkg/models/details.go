package models

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrNoDetails is returned when an event carries no object payload.
var ErrNoDetails = errors.New("event has no details object")

// LogoDetails is the Details payload of LOGO_DETECTED events
type LogoDetails struct {
	ChannelID string  `mapstructure:"channel_id" json:"channel_id"`
	Accuracy  float64 `mapstructure:"accuracy" json:"accuracy"`
	Type      string  `mapstructure:"type" json:"type,omitempty"` // detection type, e.g. "tv"
}

// AudioDetails is the Details payload of AUDIO_FINGERPRINT events
type AudioDetails struct {
	ChannelID string `mapstructure:"channel_id" json:"channel_id"`
}

// MemberGuestDetails is the Details payload of MEMBER_GUEST_DECLARATION.
// The three slices are parallel, one entry per household member.
type MemberGuestDetails struct {
	State  []bool   `mapstructure:"state" json:"state"`
	Gender []string `mapstructure:"gender" json:"gender"`
	Age    []int    `mapstructure:"age" json:"age"`
}

// Member is one zipped entry of MemberGuestDetails.
type Member struct {
	Index  int    `json:"index"` // 1-based, as shown on the dashboard
	Active bool   `json:"active"`
	Gender string `json:"gender"`
	Age    int    `json:"age"`
}

// Members zips the parallel arrays. The state slice drives the count.
func (d MemberGuestDetails) Members() []Member {
	out := make([]Member, 0, len(d.State))
	for i, active := range d.State {
		m := Member{Index: i + 1, Active: active, Gender: GenderLabel("")}
		if i < len(d.Gender) {
			m.Gender = GenderLabel(d.Gender[i])
		}
		if i < len(d.Age) {
			m.Age = d.Age[i]
		}
		out = append(out, m)
	}
	return out
}

// ActiveCount is the number of members currently watching.
func (d MemberGuestDetails) ActiveCount() int {
	n := 0
	for _, s := range d.State {
		if s {
			n++
		}
	}
	return n
}

// GenderLabel follows the device convention: "m" is male, anything else female.
func GenderLabel(code string) string {
	if code == "m" {
		return "Male"
	}
	return "Female"
}

// DecodeDetails decodes an object-valued Details payload into out.
func (e Event) DecodeDetails(out interface{}) error {
	var raw map[string]interface{}
	if len(e.Details) == 0 {
		return ErrNoDetails
	}
	if err := json.Unmarshal(e.Details, &raw); err != nil || raw == nil {
		return ErrNoDetails
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Logo decodes LOGO_DETECTED details, trimming the channel id the way the
// logo bucket keys are stored.
func (e Event) Logo() (LogoDetails, error) {
	var d LogoDetails
	err := e.DecodeDetails(&d)
	d.ChannelID = strings.TrimSpace(d.ChannelID)
	return d, err
}

func (e Event) Audio() (AudioDetails, error) {
	var d AudioDetails
	err := e.DecodeDetails(&d)
	d.ChannelID = strings.TrimSpace(d.ChannelID)
	return d, err
}

func (e Event) MemberGuest() (MemberGuestDetails, error) {
	var d MemberGuestDetails
	err := e.DecodeDetails(&d)
	return d, err
}
