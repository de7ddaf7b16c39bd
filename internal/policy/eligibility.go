package policy

import "cmt/internal/domain"

// EligibleReviewers filters candidates down to the memberships that may review sub.
// A candidate must belong to the submission's conference, hold the Reviewer role and
// must not be the primary author, a co-author or the requesting user.
func EligibleReviewers(sub *domain.Submission, candidates []*domain.Membership, requesterUserID string) []*domain.Membership {
	out := make([]*domain.Membership, 0, len(candidates))
	for _, m := range candidates {
		if IsEligibleReviewer(sub, m, requesterUserID) {
			out = append(out, m)
		}
	}
	return out
}

// IsEligibleReviewer reports whether m may review sub when requested by requesterUserID.
func IsEligibleReviewer(sub *domain.Submission, m *domain.Membership, requesterUserID string) bool {
	if sub == nil || m == nil {
		return false
	}
	if m.ConferenceID != sub.ConferenceID || !m.Roles.Has(domain.MemberRoleReviewer) {
		return false
	}
	if sub.IsAuthor(m.UserID) {
		return false
	}
	return requesterUserID == "" || m.UserID != requesterUserID
}
