package users

import "time"

// Profile holds the optional contact details a user can fill in.
type Profile struct {
	Phone      string   `json:"phone,omitempty" bson:"phone,omitempty"`
	Location   string   `json:"location,omitempty" bson:"location,omitempty"`
	LinkedIn   string   `json:"linkedin,omitempty" bson:"linkedin,omitempty"`
	GitHub     string   `json:"github,omitempty" bson:"github,omitempty"`
	Portfolio  string   `json:"portfolio,omitempty" bson:"portfolio,omitempty"`
	Skills     []string `json:"skills,omitempty" bson:"skills,omitempty"`
	Experience string   `json:"experience,omitempty" bson:"experience,omitempty"`
	Education  string   `json:"education,omitempty" bson:"education,omitempty"`
}

// User is an account that owns job applications. PasswordHash is empty for
// accounts created through Google sign-in.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	PictureURL   string
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u User) clone() User {
	out := u
	if u.Profile.Skills != nil {
		out.Profile.Skills = append([]string(nil), u.Profile.Skills...)
	}
	return out
}
