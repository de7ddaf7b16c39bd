package policy

import "cmt/internal/domain"

// Viewer answers authorization questions for one user from a snapshot taken at request start.
type Viewer struct {
	userID      string
	staff       bool
	memberships map[string]*domain.Membership
}

var _ domain.Viewer = (*Viewer)(nil)

// NewViewer builds a viewer from the user's global staff flag and all of their memberships.
func NewViewer(userID string, staff bool, memberships []*domain.Membership) *Viewer {
	byConf := make(map[string]*domain.Membership, len(memberships))
	for _, m := range memberships {
		if m != nil {
			byConf[m.ConferenceID] = m
		}
	}
	return &Viewer{userID: userID, staff: staff, memberships: byConf}
}

// UserID returns the id of the authenticated user.
func (v *Viewer) UserID() string { return v.userID }

// IsStaff reports whether the user holds the global admin role.
func (v *Viewer) IsStaff() bool { return v.staff }

// Membership returns the user's membership in the conference, if any.
func (v *Viewer) Membership(conferenceID string) (*domain.Membership, bool) {
	m, ok := v.memberships[conferenceID]
	return m, ok
}

func (v *Viewer) hasRole(conferenceID string, role domain.MemberRole) bool {
	if v.staff {
		return true
	}
	m, ok := v.memberships[conferenceID]
	return ok && m.Roles.Has(role)
}

// IsChair reports whether the user chairs the conference. Staff always do.
func (v *Viewer) IsChair(conferenceID string) bool {
	return v.hasRole(conferenceID, domain.MemberRoleChair)
}

// IsReviewer reports whether the user may review in the conference. Staff always may.
func (v *Viewer) IsReviewer(conferenceID string) bool {
	return v.hasRole(conferenceID, domain.MemberRoleReviewer)
}

// IsAuthorOf reports whether the viewer is the primary author or a co-author of s.
func (v *Viewer) IsAuthorOf(s *domain.Submission) bool {
	return s != nil && s.IsAuthor(v.userID)
}

// CanViewSubmission reports whether the user is a chair of the submission's conference or one of its authors.
func (v *Viewer) CanViewSubmission(s *domain.Submission) bool {
	if s == nil {
		return false
	}
	return v.IsChair(s.ConferenceID) || v.IsAuthorOf(s)
}

// CanEditSubmission reports whether s is visible to the user and not yet decided.
func (v *Viewer) CanEditSubmission(s *domain.Submission) bool {
	return v.CanViewSubmission(s) && !s.Status.Locked()
}

// CanDeleteSubmission reports whether the user authored s and its status still allows removal.
func (v *Viewer) CanDeleteSubmission(s *domain.Submission) bool {
	return v.IsAuthorOf(s) && s.Status.Deletable()
}
