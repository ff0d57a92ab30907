package models

import (
	"time"
)

// User is a registered account. Rows are never updated after registration.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Salt         string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table the migrations create
func (User) TableName() string {
	return "users"
}

// CredentialsRequest is the body of both /auth/register and /auth/login.
// Emptiness and length are checked by the gateway, not by binding tags, so that
// every failure maps to the same validation error shape.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// StatusResponse is used by register and logout
type StatusResponse struct {
	Status string `json:"status"`
}
