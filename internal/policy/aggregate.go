// Package policy holds the review workflow rules: status aggregation,
// reviewer eligibility and role-based authorization. Everything here is pure.
package policy

import "cmt/internal/domain"

// AggregateStatus derives a submission status from its reviews.
// Only submitted reviews count. Any REJECT wins, then any REVISE; all ACCEPT is Accepted.
// No submitted reviews, or any other mix, is Pending. The result does not depend on order.
func AggregateStatus(reviews []*domain.Review) domain.SubmissionStatus {
	var submitted, accepts int
	var revise bool
	for _, r := range reviews {
		if r == nil || !r.IsSubmitted {
			continue
		}
		submitted++
		switch r.Recommendation {
		case domain.RecommendationReject:
			return domain.SubmissionRejected
		case domain.RecommendationRevise:
			revise = true
		case domain.RecommendationAccept:
			accepts++
		}
	}
	switch {
	case submitted == 0:
		return domain.SubmissionPending
	case revise:
		return domain.SubmissionRevision
	case accepts == submitted:
		return domain.SubmissionAccepted
	}
	return domain.SubmissionPending
}
