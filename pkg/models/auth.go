package models

import "encoding/json"

// LoginPayload matches the JSON body of POST /auth/login
type LoginPayload struct {
	EmailOrName string `json:"emailOrname"`
	Password    string `json:"password"`
}

// LoginResponse is returned by POST /auth/login on success. On failure only
// Message is populated.
type LoginResponse struct {
	Token   string      `json:"token"`
	Name    string      `json:"name"`
	Role    string      `json:"role"`
	Email   string      `json:"email"`
	Expiry  json.Number `json:"expiry"` // epoch milliseconds, number or numeric string
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is the generic error body of the API.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ExpiryMillis returns the expiry as epoch milliseconds, 0 when absent.
func (r LoginResponse) ExpiryMillis() int64 {
	if r.Expiry == "" {
		return 0
	}
	if v, err := r.Expiry.Int64(); err == nil {
		return v
	}
	if f, err := r.Expiry.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
