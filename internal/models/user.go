package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a dashboard-managed user or recruiter record.
//
// The BSON names follow the existing users collection, which keeps the bcrypt
// hash under "password".
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email            string             `bson:"email" json:"email"`
	PhoneNumber      string             `bson:"phoneNumber" json:"phoneNumber"`
	PasswordHash     string             `bson:"password,omitempty" json:"-"`
	AgreeToTerms     bool               `bson:"agreeToTerms" json:"agreeToTerms"`
	IsRecruiter      bool               `bson:"isRecruiter" json:"isRecruiter"`
	IsVerified       bool               `bson:"isVerified" json:"isVerified"`
	CinPanGst        string             `bson:"cinPanGst" json:"cinPanGst"`
	CompanyEmail     string             `bson:"companyEmail" json:"companyEmail"`
	OfficeEmail      string             `bson:"officeEmail" json:"officeEmail"`
	Remarks          string             `bson:"remarks" json:"remarks"`
	FavouriteCourses []string           `bson:"favouriteCourses" json:"favouriteCourses"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Sanitize returns a copy of the user without sensitive fields populated.
func (u User) Sanitize() User {
	u.PasswordHash = ""
	courses := make([]string, len(u.FavouriteCourses))
	copy(courses, u.FavouriteCourses)
	u.FavouriteCourses = courses
	return u
}

// Identity is the minimal view of a user carried by a session.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID.Hex(), Email: u.Email}
}
