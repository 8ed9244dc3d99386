package users

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username,omitempty"`
	FullName     string    `json:"fullName,omitempty"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FirstName is used for the welcome email. Falls back to the username
// when the full name was never set.
func (u *User) FirstName() string {
	for i, r := range u.FullName {
		if r == ' ' {
			return u.FullName[:i]
		}
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
