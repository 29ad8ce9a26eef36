package model

import (
	"strings"
	"time"
)

// Roles stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// adminDomain grants the admin role to staff accounts.
const adminDomain = "@dreamer.com"

// RoleForEmail is the single place where a role is derived from an email
// address.  It runs on registration and on every email change.
func RoleForEmail(email string) string {
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), adminDomain) {
		return RoleAdmin
	}
	return RoleUser
}

// User represents an application user record as stored in the `users`
// table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – user or admin.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Name         string    `json:"name"`       // users.name
	Email        string    `json:"email"`      // users.email
	PasswordHash string    `json:"-"`          // users.password
	Role         string    `json:"role"`       // users.role
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// UserPatch carries the optional columns of a partial user update.
// PasswordHash is filled by the handler after hashing; Role is never taken
// from the client and is derived from Email when Email is set.
type UserPatch struct {
	Name         Optional[string] `json:"name"`
	Email        Optional[string] `json:"email"`
	PasswordHash Optional[string] `json:"-"`
	Role         Optional[string] `json:"-"`
}

// Empty reports whether the patch sets nothing.
func (p UserPatch) Empty() bool {
	return !p.Name.Set && !p.Email.Set && !p.PasswordHash.Set && !p.Role.Set
}
