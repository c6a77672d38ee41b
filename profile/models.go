// Package profile models the portal's identity records: every authenticated
// user has exactly one profile row whose id equals the identity-provider
// subject.
package profile

import (
	"encoding/json"
	"fmt"
	"time"

	"projectflow/gateway"
	"projectflow/storage"
)

// Role determines which record sets a session may load and which mutations
// it may perform. Roles are immutable after creation.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// User is the domain representation of a profile row in the legacy
// "clientes" table. The JSON tags mirror the remote column names.
type User struct {
	ID        string                  `json:"id"`
	Role      Role                    `json:"role"`
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	Phone     string                  `json:"phone,omitempty"`
	Contract  *storage.FileDescriptor `json:"contract,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// Validate checks the invariants every profile must satisfy.
func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("profile: missing id")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("profile: invalid role %q", u.Role)
	}
	if u.Contract != nil {
		if err := u.Contract.Validate(); err != nil {
			return fmt.Errorf("profile: contract: %w", err)
		}
	}
	return nil
}

// FromRow parses and validates an untyped gateway row into a User.
func FromRow(row gateway.Row) (User, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return User{}, fmt.Errorf("profile: encode row: %w", err)
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("profile: decode row: %w", err)
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// Row converts the user back into the gateway's untyped shape.
func (u User) Row() gateway.Row {
	raw, _ := json.Marshal(u)
	var row gateway.Row
	_ = json.Unmarshal(raw, &row)
	return row
}
