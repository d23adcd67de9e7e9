package models

import "time"

// Principal is an account known to the identity store. The token core only
// references principals by ID and never mutates them.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
