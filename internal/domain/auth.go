package domain

import (
	"fmt"
	"time"
)

// Identity is who a session token belongs to.
type Identity struct {
	UserID   string   `json:"user_id" db:"user_id"`
	AuthType AuthType `json:"auth_type" db:"auth_type"`
	Name     string   `json:"name" db:"name"`
	Avatar   string   `json:"avatar" db:"avatar"`
	Email    string   `json:"email,omitempty" db:"email"`
}

// DefaultProfile is the profile created on first sign-in. Guests get the guest template;
// external identities keep their own name and avatar where the provider supplied them.
func (i Identity) DefaultProfile() UserProfile {
	p := GuestTemplate()
	p.ID = i.UserID
	if i.AuthType == AuthGuest {
		return p
	}
	p.AuthType = i.AuthType
	p.Name = "Anonymous Guest"
	if i.Name != "" {
		p.Name = i.Name
	}
	p.Avatar = fmt.Sprintf("https://picsum.photos/seed/%s/200", i.UserID)
	if i.Avatar != "" {
		p.Avatar = i.Avatar
	}
	return p
}

// AuthSession is an issued session token, stored by hash.
type AuthSession struct {
	TokenHash string `json:"token_hash" db:"token_hash"`
	Identity
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
