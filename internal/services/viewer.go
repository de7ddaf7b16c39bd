package services

import (
	"context"
	"fmt"
	"slices"

	"cmt/internal/domain"
	"cmt/internal/policy"
)

// ViewerLoader builds the per-request authorization view of a user.
type ViewerLoader struct {
	roleRepo       domain.RoleRepository
	membershipRepo domain.MembershipRepository
}

func NewViewerLoader(roleRepo domain.RoleRepository, membershipRepo domain.MembershipRepository) *ViewerLoader {
	return &ViewerLoader{roleRepo: roleRepo, membershipRepo: membershipRepo}
}

// Load reads the user's global roles and memberships once. An admin role makes the user staff.
func (l *ViewerLoader) Load(ctx context.Context, userID string) (domain.Viewer, error) {
	roles, err := l.roleRepo.CodesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	staff := slices.Contains(roles, domain.RoleCodeAdmin)
	memberships, err := l.membershipRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	return policy.NewViewer(userID, staff, memberships), nil
}
