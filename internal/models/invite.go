package models

import "time"

// AdminInvite is a one-shot token permitting creation of a new admin account.
type AdminInvite struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// PasswordReset mirrors the invite lifecycle but targets an existing
// account's password instead of creating a new one.
type PasswordReset struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
