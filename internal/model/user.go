package model

import "time"

// Sex mirrors the contract's enumeration.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// Passport is the identity document attached to a user or passenger.
type Passport struct {
	ID         uint64    // passports.id
	Series     string    // passports.series
	IssueDate  time.Time // passports.issue_date
	IssuePlace string    // passports.issue_place
}

// User identifies either an account holder (the `me` query) or a passenger
// supplied inline with a booking.  Inventory never owns users; tickets only
// reference them.
type User struct {
	ID          uint64    // users.id (zero for inline passengers)
	Passport    Passport  // joined from passports
	FirstName   string    // users.first_name
	LastName    string    // users.last_name
	Sex         Sex       // users.sex
	DateOfBirth time.Time // users.date_of_birth
	Email       string    // users.email
	Phone       string    // users.phone
}
