// Package models defines the core data structures shared by the stores,
// the services and the backend wire format.
package models

import "time"

// DefaultSessionExpiry is assigned to every session established by the
// client. The backend does not report an expiry.
const DefaultSessionExpiry = 30 * 24 * time.Hour

// User represents the signed-in account as returned by the backend.
type User struct {
	// ID is the provider subject identifier.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is the account email address.
	Email string `json:"email"`
	// Picture is the avatar URL, possibly empty.
	Picture string `json:"picture"`
}

// SessionToken is the opaque bearer credential issued by the backend.
type SessionToken struct {
	// Token is the raw bearer value.
	Token string `json:"token"`
	// Expiry is the client-assigned lifetime. It is not persisted and not
	// enforced.
	Expiry time.Duration `json:"expiry"`
}

// AuthResponse is the result of a completed OAuth callback.
type AuthResponse struct {
	SessionToken SessionToken `json:"session_token"`
	User         User         `json:"user"`
}
