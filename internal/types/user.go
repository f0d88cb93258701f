package types

import "time"

// User is the core user entity. Records are provisioned either by password
// signup (server-generated UUID id, PasswordHash set) or by the Clerk webhook
// reconciler (id equals the Clerk user id, PasswordHash empty).
//
// PasswordHash is excluded from every JSON projection via the struct tag, so
// there is no separate "sanitize" step to forget.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Name          *string    `json:"name,omitempty"`
	FirstName     *string    `json:"firstName,omitempty"`
	LastName      *string    `json:"lastName,omitempty"`
	Username      *string    `json:"username,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	PhoneNumber   *string    `json:"phoneNumber,omitempty"`
	ExternalID    *string    `json:"externalId,omitempty"`
	ImageURL      *string    `json:"imageUrl,omitempty"`
	LastSignInAt  *time.Time `json:"lastSignInAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CreateUserParams carries all fields a caller may set on insert. ID is
// required for webhook-sourced records and pre-generated for signups.
type CreateUserParams struct {
	ID            string  `json:"id" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	PasswordHash  string  `json:"-"`
	Name          *string `json:"name,omitempty"`
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	Username      *string `json:"username,omitempty"`
	EmailVerified bool    `json:"emailVerified"`
	PhoneNumber   *string `json:"phoneNumber,omitempty"`
	ExternalID    *string `json:"externalId,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
	LastSignInAt  *time.Time
}

// UpdateUserParams defines the fields allowed for partial updates.
// Pointers distinguish "not provided" from zero values.
type UpdateUserParams struct {
	Email         *string    `json:"email,omitempty" validate:"omitempty,email"`
	Name          *string    `json:"name,omitempty"`
	FirstName     *string    `json:"firstName,omitempty"`
	LastName      *string    `json:"lastName,omitempty"`
	Username      *string    `json:"username,omitempty"`
	EmailVerified *bool      `json:"emailVerified,omitempty"`
	PhoneNumber   *string    `json:"phoneNumber,omitempty"`
	ExternalID    *string    `json:"externalId,omitempty"`
	ImageURL      *string    `json:"imageUrl,omitempty"`
	LastSignInAt  *time.Time `json:"lastSignInAt,omitempty"`
}
