package entity

import "time"

// User is the aggregate root for the account domain.
// Passwords are stored as bcrypt hashes in PasswordHash and never serialized.
//
// Photo is a composite: PhotoURL is always displayable (a placeholder when
// the account has no upload) and PhotoHandle is the asset-store reference
// used to delete the object later. An empty handle means "nothing to delete".
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhotoURL     string    `json:"photo"`
	PhotoHandle  string    `json:"-"`
	Level        string    `json:"level"`
	Fullname     string    `json:"fullname,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	City         string    `json:"city,omitempty"`
	Address      string    `json:"address,omitempty"`
	PostCode     string    `json:"post_code,omitempty"`
	CreditCard   string    `json:"credit_card,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Balance      *int64    `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sanitized returns a copy safe to hand past the service boundary:
// the password hash is cleared.
func (u User) Sanitized() *User {
	u.PasswordHash = ""
	return &u
}
