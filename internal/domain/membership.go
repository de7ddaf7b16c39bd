package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MemberRole is a per-conference role. Values are bit flags so a membership holds a RoleSet.
type MemberRole uint8

const (
	MemberRoleAuthor MemberRole = 1 << iota
	MemberRoleReviewer
	MemberRoleChair
)

// Role names as stored and rendered. RoleNameNA is accepted on input and means "no role".
const (
	RoleNameAuthor   = "Author"
	RoleNameReviewer = "Reviewer"
	RoleNameChair    = "Chair"
	RoleNameNA       = "N/A"
)

var memberRoleOrder = []MemberRole{MemberRoleAuthor, MemberRoleReviewer, MemberRoleChair}

func (r MemberRole) String() string {
	switch r {
	case MemberRoleAuthor:
		return RoleNameAuthor
	case MemberRoleReviewer:
		return RoleNameReviewer
	case MemberRoleChair:
		return RoleNameChair
	}
	return RoleNameNA
}

// ParseMemberRole parses a role name (case-insensitive). "N/A" parses to 0 with ok=true.
func ParseMemberRole(s string) (MemberRole, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "author":
		return MemberRoleAuthor, true
	case "reviewer":
		return MemberRoleReviewer, true
	case "chair":
		return MemberRoleChair, true
	case "n/a", "na":
		return 0, true
	}
	return 0, false
}

// RoleSet is a small set of MemberRole values.
type RoleSet uint8

// NewRoleSet returns a set containing roles.
func NewRoleSet(roles ...MemberRole) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r MemberRole) bool { return s&RoleSet(r) != 0 }

// Empty reports whether the set has no roles.
func (s RoleSet) Empty() bool { return s == 0 }

// Names returns role names in canonical order.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(memberRoleOrder))
	for _, r := range memberRoleOrder {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return names
}

// ParseRoleNames builds a set from role names. Unknown names are an error.
func ParseRoleNames(names []string) (RoleSet, error) {
	var s RoleSet
	for _, n := range names {
		r, ok := ParseMemberRole(n)
		if !ok {
			return 0, fmt.Errorf("unknown role %q", n)
		}
		s |= RoleSet(r)
	}
	return s, nil
}

// RoleSetFromSlots converts the two-slot registration input into a set.
// Empty role1 means Author, empty role2 means N/A. The slots must differ unless role2 is N/A.
// A set that ends up empty defaults to Author.
func RoleSetFromSlots(role1, role2 string) (RoleSet, error) {
	if strings.TrimSpace(role1) == "" {
		role1 = RoleNameAuthor
	}
	if strings.TrimSpace(role2) == "" {
		role2 = RoleNameNA
	}
	r1, ok := ParseMemberRole(role1)
	if !ok {
		return 0, NewValidationError(fmt.Sprintf("role1: unknown role %q", role1))
	}
	r2, ok := ParseMemberRole(role2)
	if !ok {
		return 0, NewValidationError(fmt.Sprintf("role2: unknown role %q", role2))
	}
	if r2 != 0 && r1 == r2 {
		return 0, NewValidationError("please choose two different roles")
	}
	s := NewRoleSet(r1, r2)
	if s.Empty() {
		s = NewRoleSet(MemberRoleAuthor)
	}
	return s, nil
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	parsed, err := ParseRoleNames(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MembershipStatus is the registration-approval status of a membership.
type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "Pending"
	MembershipAccepted  MembershipStatus = "Accepted"
	MembershipRejected  MembershipStatus = "Rejected"
	MembershipWithdrawn MembershipStatus = "Withdrawn"
)

// Valid reports whether s is a known status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPending, MembershipAccepted, MembershipRejected, MembershipWithdrawn:
		return true
	}
	return false
}

// Membership ties one user to one conference.
// swagger:model Membership
type Membership struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	ConferenceID string           `json:"conference_id"`
	Roles        RoleSet          `json:"roles" swaggertype:"array,string"`
	IsPaid       bool             `json:"is_paid"`
	Status       MembershipStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`

	// User is populated by listing queries that join users.
	User *User `json:"user,omitempty"`
}

// HasConferenceAccess reports whether the member has paid for the conference.
func (m *Membership) HasConferenceAccess() bool { return m != nil && m.IsPaid }

// MembershipUpdate carries chair changes; nil fields are left unchanged.
type MembershipUpdate struct {
	Roles  *RoleSet
	Status *MembershipStatus
}

// MembershipRepository defines storage operations for memberships.
type MembershipRepository interface {
	// Create inserts a membership. Returns ErrAlreadyMember on a duplicate (user, conference).
	Create(ctx context.Context, m *Membership) error
	GetByID(ctx context.Context, id string) (*Membership, error)
	GetByUserAndConference(ctx context.Context, userID, conferenceID string) (*Membership, error)
	ListByUserID(ctx context.Context, userID string) ([]*Membership, error)
	// ListByConferenceID returns memberships with User populated.
	ListByConferenceID(ctx context.Context, conferenceID string) ([]*Membership, error)
	// ListByRole returns memberships of the conference holding role, with User populated.
	ListByRole(ctx context.Context, conferenceID string, role MemberRole) ([]*Membership, error)
	// Update writes roles and status only and refreshes m.IsPaid from storage.
	Update(ctx context.Context, m *Membership) error
	// MarkPaid sets is_paid for the user's membership in the conference and is its only writer.
	// Missing membership is not an error.
	MarkPaid(ctx context.Context, userID, conferenceID string) error
}

// MembershipService defines conference registration and chair management of members.
type MembershipService interface {
	// Register creates the caller's membership. Returns (m, created, err); created is false if already registered.
	Register(ctx context.Context, userID, slug, role1, role2 string) (*Membership, bool, error)
	GetMine(ctx context.Context, userID, slug string) (*Membership, error)
	ListMine(ctx context.Context, userID string) ([]*Membership, error)
	Withdraw(ctx context.Context, userID, slug string) (*Membership, error)
	ListForConference(ctx context.Context, viewer Viewer, slug string) ([]*Membership, error)
	UpdateByChair(ctx context.Context, viewer Viewer, slug, membershipID string, upd MembershipUpdate) (*Membership, error)
}
