package domain

import "strings"

// Session is the application's local view of the signed-in user. It is
// built from provider notifications and mutated only through the session
// store; an absent session (nil) means signed out.
type Session struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	UserID      string `json:"user_id"`
	// NoteCount is tracked locally per user and seeded from the note
	// archive on every provider notification. The provider knows nothing
	// about it.
	NoteCount int `json:"note_count"`
}

// Valid reports whether the session carries the minimum identity data.
// A session without a user ID is treated as not authenticated.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != ""
}

// DisplayNameOrFallback returns the display name, falling back to the
// local part of the email when the provider has no name on record.
func (s *Session) DisplayNameOrFallback() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return LocalPart(s.Email)
}

// LocalPart returns the part of an email address before the '@'.
func LocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
