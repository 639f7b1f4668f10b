package store

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/errors"
)

// Person is a contact record. The address is stored flat (street + city) and
// composed into a nested shape only at the API boundary.
type Person struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Phone  string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Street string             `bson:"street" json:"street"`
	City   string             `bson:"city" json:"city"`
}

// Validate checks required-field constraints before a write
func (p *Person) Validate() error {
	if p.Name == "" {
		return errors.WrapValidation(errors.ErrRequiredField, "Person", "Validate",
			"name is required")
	}
	if len(p.Name) < 3 {
		return errors.WrapValidation(errors.ErrInvalidInput, "Person", "Validate",
			"name must be at least 3 characters")
	}
	if p.Street == "" {
		return errors.WrapValidation(errors.ErrRequiredField, "Person", "Validate",
			"street is required")
	}
	if p.City == "" {
		return errors.WrapValidation(errors.ErrRequiredField, "Person", "Validate",
			"city is required")
	}
	return nil
}

// User is an account record. Friends holds weak references to Person
// documents, expanded to full records on read when needed.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Friends      []primitive.ObjectID `bson:"friends" json:"-"`
}

// Validate checks required-field constraints before a write
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.WrapValidation(errors.ErrRequiredField, "User", "Validate",
			"username is required")
	}
	if len(u.Username) < 3 {
		return errors.WrapValidation(errors.ErrInvalidInput, "User", "Validate",
			"username must be at least 3 characters")
	}
	if u.PasswordHash == "" {
		return errors.WrapValidation(errors.ErrRequiredField, "User", "Validate",
			"password hash is required")
	}
	return nil
}

// HasFriend reports whether the given person id is already in the friends list
func (u *User) HasFriend(id primitive.ObjectID) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// PhoneFilter selects persons by phone presence in AllPersons
type PhoneFilter string

const (
	// PhoneAny returns every person regardless of phone
	PhoneAny PhoneFilter = ""
	// PhoneYes returns only persons with a phone number
	PhoneYes PhoneFilter = "YES"
	// PhoneNo returns only persons without a phone number
	PhoneNo PhoneFilter = "NO"
)
