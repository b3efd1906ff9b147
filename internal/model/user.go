// Package model defines the data structures used throughout the application.
package model

import "time"

// InitialBalance is the saisen (offering money) every new account starts with.
const InitialBalance = 1000

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leave the server. Tagging the field with "-" makes
// encoding/json skip it entirely, so every handler that writes a User to the
// response body automatically produces the sanitized view — there is no
// separate "public user" struct to keep in sync.
//
// SaisenBalance is the in-app currency counter. It starts at InitialBalance
// on registration and is only ever changed through the repository's balance
// operations; it must never go negative (the debit path enforces the floor).
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	ProfileImage  string    `json:"profileImage,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	IsAdmin       bool      `json:"isAdmin"`
	IsSuperAdmin  bool      `json:"isSuperAdmin"`
	SaisenBalance int       `json:"saisenBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}
