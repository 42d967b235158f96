package models

import "time"

// User is an account in the directory.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ProfileURL   string    `db:"profile_url" json:"profile_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PublicUser is the API view of a user, with no credential material.
type PublicUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// Public strips the credential fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		ProfileURL: u.ProfileURL,
	}
}
