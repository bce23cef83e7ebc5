package domain

import "time"

// Profile holds the attributes supplied at sign-up.
type Profile struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        Role   `json:"role"`
}

// IdentityRecord is a stored mock identity. Email is kept lower-cased and is unique.
type IdentityRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Role         Role      `json:"role"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// User is the public view of an identity embedded in sessions and responses.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        Role   `json:"role"`
}

// User strips the credential from the record.
func (r IdentityRecord) User() User {
	return User{
		ID:          r.ID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Role:        r.Role,
	}
}
