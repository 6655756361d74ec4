package auth

import (
	"time"
)

// User is a locally known identity derived from a Google sign-in. ID is the
// provider's subject identifier and never changes once stored.
type User struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	ProfilePic string    `db:"profile_pic"`
	CreatedAt  time.Time `db:"created_at"`
}

// SessionSubject returns the value a browser session is bound to.
func (u User) SessionSubject() string {
	return u.ID
}

// GoogleClaims contains the relevant fields of a Google user-info response.
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"-"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// User builds the local user value the claims describe.
func (c GoogleClaims) User() User {
	return User{
		ID:         c.Sub,
		Name:       c.Name,
		Email:      c.Email,
		ProfilePic: c.Picture,
	}
}
