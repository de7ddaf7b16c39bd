package domain

import (
	"context"
	"time"
)

// Occupation is the self-declared occupation used for fee pricing.
type Occupation string

const (
	OccupationStudentUndergraduate Occupation = "student_undergraduate"
	OccupationStudentGraduate      Occupation = "student_graduate"
	OccupationFaculty              Occupation = "faculty"
	OccupationAlumni               Occupation = "alumni"
	OccupationOther                Occupation = "other"
)

// Valid reports whether o is one of the known occupations.
func (o Occupation) Valid() bool {
	switch o {
	case OccupationStudentUndergraduate, OccupationStudentGraduate, OccupationFaculty, OccupationAlumni, OccupationOther:
		return true
	}
	return false
}

// Global role codes. RoleCodeAdmin grants staff rights across every conference.
const (
	RoleCodeAdmin  = "admin"
	RoleCodeMember = "member"
)

// User represents a registered user
// swagger:model User
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Country      string     `json:"country"`
	Organization string     `json:"organization"`
	Phone        string     `json:"phone"`
	Occupation   Occupation `json:"occupation"`
	IATMMember   bool       `json:"iatm_member"`
	PasswordHash string     `json:"-"`
	Salt         string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName returns "First Last", or the email when no name is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// PasswordHasher handles salt generation, hashing, and verification.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string, roles []string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*User, error)
	Update(ctx context.Context, user *User) error
}

// RoleRepository stores global role grants.
type RoleRepository interface {
	// Grant gives the user the role with the given code. Granting twice is a no-op.
	Grant(ctx context.Context, userID, code string) error
	// CodesForUser returns the user's role codes in alphabetical order.
	CodesForUser(ctx context.Context, userID string) ([]string, error)
}

// SignUpInput is the data required to create an account.
type SignUpInput struct {
	Email                string
	Password             string
	PasswordConfirmation string
	FirstName            string
	LastName             string
	Country              string
	Organization         string
	Phone                string
	Occupation           Occupation
	IATMMember           bool
}

// ProfileUpdate carries optional profile changes; nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	Country      *string
	Organization *string
	Phone        *string
	Occupation   *Occupation
	IATMMember   *bool
}

// AuthService defines account creation and password login.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*User, error)
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
}

// UserService defines the business logic for user profiles.
type UserService interface {
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
}
