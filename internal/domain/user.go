package domain

import (
	"errors"
	"strings"
	"time"
)

// User identifies a registered saver. Immutable after creation except the
// display fields.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NewUser builds a User, normalizing display fields.
func NewUser(id, fullName, email string, registeredAt time.Time) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, errors.New("user id is required")
	}
	return User{
		ID:           strings.TrimSpace(id),
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		RegisteredAt: registeredAt.UTC(),
	}, nil
}

// HasContact reports whether the user can be reached for verification
// follow-up.
func (u User) HasContact() bool {
	return u.Email != ""
}
