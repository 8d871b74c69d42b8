// Package domain contains entity without logic, just meta-data
package domain

type UserID string

const DefaultDisplayName = "Anonymous"

// UserInfo is the snapshot of profile data a client presents on join.
// It is cached for the lifetime of the connection, never refreshed.
type UserInfo struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Email    string `json:"email"`
}

// Normalized returns a copy with defaults applied. A join with empty
// user info is valid and becomes an anonymous participant.
func (u UserInfo) Normalized() UserInfo {
	if u.Name == "" {
		u.Name = DefaultDisplayName
	}
	return u
}
